package placeholder

import (
	"context"
	"fmt"
	"regexp"

	"github.com/guideforge/engine/xerrors"
)

// tokenPattern matches `{{secret.KEY}}` or `{{var.KEY}}` tokens.
var tokenPattern = regexp.MustCompile(`\{\{(secret|var)\.([A-Za-z0-9_]+)\}\}`)

// Store holds the concrete secret/variable values for one session plus the
// two per-URL label resolvers, and performs the token substitution the
// Step Executor needs at execute time.
type Store struct {
	secretResolver *Resolver
	varResolver    *Resolver

	secrets map[string]string
	vars    map[string]string
}

// NewStore builds a Store. secretResolver/varResolver may be nil when the
// configured secretsStrategy is "heuristic", in which case label
// resolution falls back to returning no mapping rather than calling an LLM.
func NewStore(secretResolver, varResolver *Resolver, secrets, vars map[string]string) *Store {
	return &Store{
		secretResolver: secretResolver,
		varResolver:    varResolver,
		secrets:        secrets,
		vars:           vars,
	}
}

// ResolveValue substitutes every `{{secret.KEY}}` / `{{var.KEY}}` token in
// value. An unknown key is a PlaceholderError, fatal for the containing
// step.
func (s *Store) ResolveValue(value string) (string, error) {
	var outErr error
	result := tokenPattern.ReplaceAllStringFunc(value, func(tok string) string {
		if outErr != nil {
			return tok
		}
		m := tokenPattern.FindStringSubmatch(tok)
		namespace, key := m[1], m[2]
		set := s.vars
		if namespace == string(NamespaceSecret) {
			set = s.secrets
		}
		v, ok := set[key]
		if !ok {
			outErr = xerrors.NewPlaceholderError(namespace, key)
			return tok
		}
		return v
	})
	if outErr != nil {
		return "", outErr
	}
	return result, nil
}

// ResolveLabel maps a visible field label to a placeholder token for a Type
// step that was proposed without an explicit value, trying the secret
// resolver first so secret-level mappings dominate over variable-level ones
// on collision. Returns ok=false when neither resolver produces a mapping.
func (s *Store) ResolveLabel(ctx context.Context, url, label string) (token string, sensitive bool, ok bool, err error) {
	if s.secretResolver != nil && len(s.secrets) > 0 {
		hints := hintsFor(s.secrets)
		mapping, err := s.secretResolver.Resolve(ctx, url, []string{label}, hints)
		if err != nil {
			return "", false, false, err
		}
		if key, found := mapping[label]; found {
			return fmt.Sprintf("{{secret.%s}}", key), true, true, nil
		}
	}
	if s.varResolver != nil && len(s.vars) > 0 {
		hints := hintsFor(s.vars)
		mapping, err := s.varResolver.Resolve(ctx, url, []string{label}, hints)
		if err != nil {
			return "", false, false, err
		}
		if key, found := mapping[label]; found {
			return fmt.Sprintf("{{var.%s}}", key), false, true, nil
		}
	}
	return "", false, false, nil
}

func hintsFor(values map[string]string) []KeyHint {
	hints := make([]KeyHint, 0, len(values))
	for k := range values {
		hints = append(hints, NewKeyHint(k, ""))
	}
	return hints
}
