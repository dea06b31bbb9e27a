package token

import (
	"context"
	"encoding/base64"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"brain-link-tracker/internal/redirect/domain"
	"brain-link-tracker/internal/redirect/nonce"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	genesisKey    = []byte("genesis-secret-key-for-tests")
	validationKey = []byte("validation-secret-key-for-tests")
	contextKey    = []byte("context-key-for-tests")
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func setupCodec(t *testing.T) (*Codec, *nonce.MemoryStore, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Unix(1700000000, 0)}
	store := nonce.NewMemoryStore(nonce.WithClock(clock.Now))
	return NewCodec(store, WithClock(clock.Now)), store, clock
}

func genesisClaims() *Claims {
	return &Claims{
		LinkID:         "L1",
		Stage:          domain.PayloadStageGenesis,
		IPHash:         domain.HashContext(contextKey, "1.2.3.4"),
		UAHash:         domain.HashContext(contextKey, "UA1"),
		OriginalParams: map[string]string{"uid": "42"},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   domain.IssuerGenesis,
			Audience: jwt.ClaimStrings{domain.AudienceValidation},
			Subject:  "L1_1700000000000_deadbeef",
		},
	}
}

func TestCodec_MintSetsWindowAndID(t *testing.T) {
	codec, _, clock := setupCodec(t)
	claims := genesisClaims()

	raw, err := codec.Mint(claims, genesisKey, 15*time.Second)
	require.NoError(t, err)
	assert.Len(t, strings.Split(raw, "."), 3)

	assert.NotEmpty(t, claims.ID)
	assert.Equal(t, clock.Now(), claims.IssuedAt.Time)
	assert.Equal(t, claims.IssuedAt.Time, claims.NotBefore.Time)
	assert.Equal(t, clock.Now().Add(16*time.Second), claims.ExpiresAt.Time)
}

func TestCodec_LifetimeCoversFullTTL(t *testing.T) {
	tests := []struct {
		name  string
		ttl   time.Duration
		after time.Duration
		want  domain.Reason
	}{
		{name: "verified just after a sub-second mint", ttl: time.Second, after: 2 * time.Millisecond, want: domain.ReasonValid},
		{name: "verified at the end of the ttl", ttl: 15 * time.Second, after: 15 * time.Second, want: domain.ReasonValid},
		{name: "verified late in the ttl", ttl: 15 * time.Second, after: 14*time.Second + 2*time.Millisecond, want: domain.ReasonValid},
		{name: "verified past the ttl", ttl: 15 * time.Second, after: 15*time.Second + 2*time.Millisecond, want: domain.ReasonExpiredToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			clock := &testClock{now: time.Unix(1700000000, 999*int64(time.Millisecond))}
			store := nonce.NewMemoryStore(nonce.WithClock(clock.Now))
			codec := NewCodec(store, WithClock(clock.Now))

			raw, err := codec.Mint(genesisClaims(), genesisKey, tt.ttl)
			require.NoError(t, err)

			// Act
			clock.Advance(tt.after)
			_, reason := codec.Verify(context.Background(), raw, genesisKey, domain.AudienceValidation)

			// Assert
			assert.Equal(t, tt.want, reason)
		})
	}
}

func TestCodec_MintUniqueIDs(t *testing.T) {
	codec, _, _ := setupCodec(t)

	first := genesisClaims()
	second := genesisClaims()
	_, err := codec.Mint(first, genesisKey, time.Minute)
	require.NoError(t, err)
	_, err = codec.Mint(second, genesisKey, time.Minute)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
}

func TestCodec_MintEmptyKey(t *testing.T) {
	codec, _, _ := setupCodec(t)

	_, err := codec.Mint(genesisClaims(), nil, time.Minute)
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestCodec_VerifyFresh(t *testing.T) {
	codec, _, _ := setupCodec(t)

	raw, err := codec.Mint(genesisClaims(), genesisKey, 15*time.Second)
	require.NoError(t, err)

	claims, reason := codec.Verify(context.Background(), raw, genesisKey, domain.AudienceValidation)

	assert.Equal(t, domain.ReasonValid, reason)
	require.NotNil(t, claims)
	assert.Equal(t, "L1", claims.LinkID)
	assert.Equal(t, "L1_1700000000000_deadbeef", claims.ClickID())
	assert.Equal(t, domain.IssuerGenesis, claims.Issuer)
	assert.Equal(t, map[string]string{"uid": "42"}, claims.OriginalParams)
	assert.Equal(t, domain.HashContext(contextKey, "1.2.3.4"), claims.IPHash)
}

func TestCodec_VerifyRejections(t *testing.T) {
	tests := []struct {
		name     string
		mintKey  []byte
		ttl      time.Duration
		advance  time.Duration
		tamper   func(string) string
		verKey   []byte
		audience string
		want     domain.Reason
	}{
		{
			name:     "wrong key",
			mintKey:  genesisKey,
			ttl:      15 * time.Second,
			verKey:   validationKey,
			audience: domain.AudienceValidation,
			want:     domain.ReasonInvalidSignature,
		},
		{
			name:    "tampered payload",
			mintKey: genesisKey,
			ttl:     15 * time.Second,
			tamper: func(raw string) string {
				parts := strings.Split(raw, ".")
				payload, err := base64.RawURLEncoding.DecodeString(parts[1])
				if err != nil {
					panic(err)
				}
				forged := strings.Replace(string(payload), `"link_id":"L1"`, `"link_id":"L2"`, 1)
				parts[1] = base64.RawURLEncoding.EncodeToString([]byte(forged))
				return strings.Join(parts, ".")
			},
			verKey:   genesisKey,
			audience: domain.AudienceValidation,
			want:     domain.ReasonInvalidSignature,
		},
		{
			name:     "malformed",
			mintKey:  genesisKey,
			ttl:      15 * time.Second,
			tamper:   func(string) string { return "not-a-token" },
			verKey:   genesisKey,
			audience: domain.AudienceValidation,
			want:     domain.ReasonInvalidSignature,
		},
		{
			name:     "expired",
			mintKey:  genesisKey,
			ttl:      time.Second,
			advance:  2 * time.Second,
			verKey:   genesisKey,
			audience: domain.AudienceValidation,
			want:     domain.ReasonExpiredToken,
		},
		{
			name:     "wrong audience",
			mintKey:  genesisKey,
			ttl:      15 * time.Second,
			verKey:   genesisKey,
			audience: domain.AudienceRouting,
			want:     domain.ReasonInvalidAudience,
		},
		{
			name:     "expired and wrong key reports signature first",
			mintKey:  genesisKey,
			ttl:      time.Second,
			advance:  time.Minute,
			verKey:   validationKey,
			audience: domain.AudienceValidation,
			want:     domain.ReasonInvalidSignature,
		},
		{
			name:     "expired and wrong audience reports expiry first",
			mintKey:  genesisKey,
			ttl:      time.Second,
			advance:  time.Minute,
			verKey:   genesisKey,
			audience: domain.AudienceRouting,
			want:     domain.ReasonExpiredToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codec, store, clock := setupCodec(t)

			raw, err := codec.Mint(genesisClaims(), tt.mintKey, tt.ttl)
			require.NoError(t, err)
			if tt.tamper != nil {
				raw = tt.tamper(raw)
			}
			clock.Advance(tt.advance)

			claims, reason := codec.Verify(context.Background(), raw, tt.verKey, tt.audience)

			assert.Equal(t, tt.want, reason)
			assert.Nil(t, claims)
			assert.Zero(t, store.Len(), "rejected tokens must not reach the nonce store")
		})
	}
}

func TestCodec_VerifyNotYetValid(t *testing.T) {
	codec, _, clock := setupCodec(t)

	raw, err := codec.Mint(genesisClaims(), genesisKey, 15*time.Second)
	require.NoError(t, err)

	clock.Advance(-5 * time.Second)
	_, reason := codec.Verify(context.Background(), raw, genesisKey, domain.AudienceValidation)

	assert.Equal(t, domain.ReasonExpiredToken, reason)
}

func TestCodec_VerifyReplay(t *testing.T) {
	codec, _, _ := setupCodec(t)
	ctx := context.Background()

	raw, err := codec.Mint(genesisClaims(), genesisKey, 15*time.Second)
	require.NoError(t, err)

	claims, reason := codec.Verify(ctx, raw, genesisKey, domain.AudienceValidation)
	assert.Equal(t, domain.ReasonValid, reason)
	assert.NotNil(t, claims)

	claims, reason = codec.Verify(ctx, raw, genesisKey, domain.AudienceValidation)
	assert.Equal(t, domain.ReasonReplayAttack, reason)
	assert.Nil(t, claims)
}

func TestCodec_ExpiredTwiceIsNotReplay(t *testing.T) {
	codec, _, clock := setupCodec(t)
	ctx := context.Background()

	raw, err := codec.Mint(genesisClaims(), genesisKey, time.Second)
	require.NoError(t, err)
	clock.Advance(2 * time.Second)

	_, first := codec.Verify(ctx, raw, genesisKey, domain.AudienceValidation)
	_, second := codec.Verify(ctx, raw, genesisKey, domain.AudienceValidation)

	assert.Equal(t, domain.ReasonExpiredToken, first)
	assert.Equal(t, domain.ReasonExpiredToken, second)
}

func TestCodec_ConcurrentVerifySucceedsOnce(t *testing.T) {
	codec, _, _ := setupCodec(t)
	ctx := context.Background()

	raw, err := codec.Mint(genesisClaims(), genesisKey, 15*time.Second)
	require.NoError(t, err)

	var valid, replays atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			switch _, reason := codec.Verify(ctx, raw, genesisKey, domain.AudienceValidation); reason {
			case domain.ReasonValid:
				valid.Add(1)
			case domain.ReasonReplayAttack:
				replays.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), valid.Load())
	assert.Equal(t, int32(31), replays.Load())
}

func TestCodec_RejectsOtherAlgorithms(t *testing.T) {
	codec, _, _ := setupCodec(t)

	claims := genesisClaims()
	claims.ExpiresAt = jwt.NewNumericDate(time.Unix(1700000000, 0).Add(time.Minute))
	claims.NotBefore = jwt.NewNumericDate(time.Unix(1700000000, 0))
	claims.ID = "forged"
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(genesisKey)
	require.NoError(t, err)

	_, reason := codec.Verify(context.Background(), raw, genesisKey, domain.AudienceValidation)
	assert.Equal(t, domain.ReasonInvalidSignature, reason)
}
