package nullriver_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/guideforge/engine/browser/nullriver"
)

func TestGotoAndURL(t *testing.T) {
	d := nullriver.New("https://example.com")
	require.NoError(t, d.Goto(context.Background(), "https://example.com/login"))
	url, err := d.URL(context.Background())
	require.NoError(t, err)
	require.Equal(t, "https://example.com/login", url)
}

func TestLocateAndType(t *testing.T) {
	d := nullriver.New("https://example.com", "Username")
	el, err := d.LocateByLabel(context.Background(), "Username")
	require.NoError(t, err)
	require.NoError(t, d.Type(context.Background(), el, "alice"))
	require.Equal(t, "alice", d.FieldValue("Username"))
}

func TestLocateUnknownLabelErrors(t *testing.T) {
	d := nullriver.New("https://example.com")
	_, err := d.LocateByLabel(context.Background(), "Nope")
	require.Error(t, err)
}

func TestClickTriggersSimulatedNavigation(t *testing.T) {
	d := nullriver.New("https://example.com/login", "Login")
	d.NavigateOnClickLabel = "Login"
	d.NavigateTo = "https://example.com/dashboard"

	el, err := d.LocateByLabel(context.Background(), "Login")
	require.NoError(t, err)
	require.NoError(t, d.Click(context.Background(), el))

	url, _ := d.URL(context.Background())
	require.Equal(t, "https://example.com/dashboard", url)
	require.Equal(t, []string{"Login"}, d.Clicks())
}
