package usecase

import (
	"net/url"
	"testing"

	"brain-link-tracker/internal/redirect/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildFinalURL_PriorityLaw(t *testing.T) {
	got, err := BuildFinalURL("https://x.com/p?ref=abc",
		map[string]string{"quantum_click_id": "c1"},
		map[string]string{"ref": "user123", "email": "a@b.com"},
	)

	require.NoError(t, err)
	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "user123", u.Query().Get("ref"))
	assert.Equal(t, "a@b.com", u.Query().Get("email"))
	assert.Equal(t, "c1", u.Query().Get("quantum_click_id"))
}

func TestBuildFinalURL(t *testing.T) {
	tests := []struct {
		name        string
		destination string
		layers      []map[string]string
		want        string
	}{
		{
			name:        "no layers keeps destination",
			destination: "https://dest.com/page",
			want:        "https://dest.com/page",
		},
		{
			name:        "keys are sorted",
			destination: "https://dest.com/page?z=1",
			layers:      []map[string]string{{"a": "2"}},
			want:        "https://dest.com/page?a=2&z=1",
		},
		{
			name:        "fragment dropped",
			destination: "https://dest.com/page#section",
			layers:      []map[string]string{{"a": "1"}},
			want:        "https://dest.com/page?a=1",
		},
		{
			name:        "later layer wins",
			destination: "https://dest.com/",
			layers:      []map[string]string{{"k": "low"}, nil, {"k": "high"}},
			want:        "https://dest.com/?k=high",
		},
		{
			name:        "repeated destination key collapses on override",
			destination: "https://dest.com/?k=1&k=2",
			layers:      []map[string]string{{"k": "3"}},
			want:        "https://dest.com/?k=3",
		},
		{
			name:        "values are escaped",
			destination: "https://dest.com/",
			layers:      []map[string]string{{"email": "a@b.com"}},
			want:        "https://dest.com/?email=a%40b.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildFinalURL(tt.destination, tt.layers...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildFinalURL_InvalidDestination(t *testing.T) {
	for _, dest := range []string{"", "not-a-url", "/relative/path", "://bad"} {
		t.Run(dest, func(t *testing.T) {
			_, err := BuildFinalURL(dest)
			assert.ErrorIs(t, err, domain.ErrInvalidDestination)
		})
	}
}
