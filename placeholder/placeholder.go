// Package placeholder implements the Placeholder Resolver: maps
// natural-language field labels on a page to keys from a secrets set
// (sensitive) or a variables set (plain) via an LLM call with strict
// post-filters, memoizing results per URL for the session.
package placeholder

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/guideforge/engine/jsonrecover"
	"github.com/guideforge/engine/model"
	"github.com/guideforge/engine/telemetry"
)

// Namespace distinguishes the two placeholder token kinds
// (`{{secret.KEY}}` vs `{{var.KEY}}`).
type Namespace string

const (
	NamespaceSecret Namespace = "secret"
	NamespaceVar    Namespace = "var"
)

var (
	usernameLike = regexp.MustCompile(`(?i)email|username|login|user|mail|benutzername`)
	passwordLike = regexp.MustCompile(`(?i)password|pwd|pw|passwort`)
)

// crossTypeSafe reports whether label may legally map to key.
func crossTypeSafe(label, key string) bool {
	labelIsUser := usernameLike.MatchString(label)
	labelIsPass := passwordLike.MatchString(label)
	keyIsUser := usernameLike.MatchString(key)
	keyIsPass := passwordLike.MatchString(key)

	if labelIsUser && keyIsPass {
		return false
	}
	if labelIsPass && keyIsUser {
		return false
	}
	return true
}

// Resolver maps field labels to keys for one namespace, backed by an LLM
// and memoized per URL for the lifetime of the owning session. Resolver is
// safe for concurrent use; caches are per-session, not global, so each
// session constructs its own Resolver instances.
type Resolver struct {
	namespace Namespace
	client    model.Client
	logger    telemetry.Logger

	mu    sync.Mutex
	cache map[string]map[string]string // url -> label -> key
}

// NewSecretResolver builds a Resolver whose results mark the target Step
// sensitive.
func NewSecretResolver(client model.Client, logger telemetry.Logger) *Resolver {
	return newResolver(NamespaceSecret, client, logger)
}

// NewVariableResolver builds a Resolver whose results are plain (not
// sensitive).
func NewVariableResolver(client model.Client, logger telemetry.Logger) *Resolver {
	return newResolver(NamespaceVar, client, logger)
}

func newResolver(ns Namespace, client model.Client, logger telemetry.Logger) *Resolver {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Resolver{
		namespace: ns,
		client:    client,
		logger:    logger,
		cache:     make(map[string]map[string]string),
	}
}

// Namespace reports which token namespace this resolver produces mappings
// for.
func (r *Resolver) Namespace() Namespace { return r.namespace }

// keyHint pairs a candidate key with an optional human hint describing its
// purpose, surfaced to the LLM to disambiguate near-duplicate labels.
type keyHint struct {
	Key  string
	Hint string
}

// KeyHint is the exported form of keyHint, used by callers building the
// candidate key set.
type KeyHint = keyHint

// NewKeyHint builds a KeyHint.
func NewKeyHint(key, hint string) KeyHint { return KeyHint{Key: key, Hint: hint} }

// Resolve maps labels to keys for the given url, using (and populating) the
// per-URL cache. Only labels newly seen for this URL trigger an LLM call;
// previously resolved labels are served from cache.
func (r *Resolver) Resolve(ctx context.Context, url string, labels []string, keys []KeyHint) (map[string]string, error) {
	r.mu.Lock()
	cached := r.cache[url]
	var missing []string
	result := make(map[string]string)
	for _, label := range labels {
		if cached != nil {
			if key, ok := cached[label]; ok {
				result[label] = key
				continue
			}
		}
		missing = append(missing, label)
	}
	r.mu.Unlock()

	if len(missing) == 0 || len(keys) == 0 {
		return result, nil
	}

	mapping, err := r.callLLM(ctx, url, missing, keys)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if r.cache[url] == nil {
		r.cache[url] = make(map[string]string)
	}
	for label, key := range mapping {
		r.cache[url][label] = key
		result[label] = key
	}
	r.mu.Unlock()

	return result, nil
}

type llmMappingResponse struct {
	Mappings map[string]string `json:"mappings"`
}

func (r *Resolver) callLLM(ctx context.Context, url string, labels []string, keys []KeyHint) (map[string]string, error) {
	prompt := buildPrompt(r.namespace, url, labels, keys)
	resp, err := r.client.Execute(ctx, model.Request{
		SystemPrompt: placeholderSystemPrompt,
		UserPrompt:   prompt,
		MaxTokens:    512,
	})
	if err != nil {
		return nil, fmt.Errorf("placeholder: llm call failed: %w", err)
	}

	raw, ok := jsonrecover.ExtractBalancedObject(resp.Text)
	if !ok {
		r.logger.Warn(ctx, "placeholder: no JSON object in LLM response", "url", url)
		return map[string]string{}, nil
	}
	raw = jsonrecover.CleanTrailingCommas(raw)

	var parsed llmMappingResponse
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		r.logger.Warn(ctx, "placeholder: failed to decode LLM mapping", "url", url, "error", err)
		return map[string]string{}, nil
	}

	keySet := make(map[string]string, len(keys)) // lowercase -> canonical
	for _, k := range keys {
		keySet[strings.ToLower(k.Key)] = k.Key
	}

	out := make(map[string]string, len(parsed.Mappings))
	for label, candidateKey := range parsed.Mappings {
		canonical, exists := keySet[strings.ToLower(candidateKey)]
		if !exists {
			r.logger.Warn(ctx, "placeholder: dropping mapping to unknown key", "label", label, "key", candidateKey)
			continue
		}
		if !crossTypeSafe(label, canonical) {
			r.logger.Warn(ctx, "placeholder: dropping cross-type-unsafe mapping", "label", label, "key", canonical)
			continue
		}
		out[label] = canonical
	}
	return out, nil
}

const placeholderSystemPrompt = `You map visible form field labels to the most appropriate key from a provided candidate set. Respond with exactly one JSON object of the form {"mappings": {"<label>": "<key>"}}. Omit any label you cannot confidently map. Never invent a key that is not in the candidate set.`

func buildPrompt(ns Namespace, url string, labels []string, keys []KeyHint) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Namespace: %s\nURL: %s\n\nLabels:\n", ns, url)
	for _, l := range labels {
		fmt.Fprintf(&b, "- %q\n", l)
	}
	b.WriteString("\nCandidate keys:\n")
	for _, k := range keys {
		if k.Hint != "" {
			fmt.Fprintf(&b, "- %s (%s)\n", k.Key, k.Hint)
		} else {
			fmt.Fprintf(&b, "- %s\n", k.Key)
		}
	}
	return b.String()
}
