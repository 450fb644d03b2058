package authvault

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

// testSharedSecret is base64url without padding, the form enrollment stores.
const testSharedSecret = "b3BlbnNlc2FtZW9wZW5zZXNhbWU"

type staticResolver struct {
	mechanism *Mechanism
}

func (r *staticResolver) GetMechanismByUID(_ context.Context, uid string) (*Mechanism, error) {
	if r.mechanism == nil || r.mechanism.MechanismUID != uid {
		return nil, ErrNotFound
	}
	return r.mechanism, nil
}

func testPushMechanism() *Mechanism {
	mechanism := NewMechanism("issuerX", "alice", TypePush, "uid-push-1")
	mechanism.Secret = testSharedSecret
	return mechanism
}

func signedPushMessage(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	key, err := decodeSharedSecret(secret)
	if err != nil {
		t.Fatalf("decodeSharedSecret failed: %v", err)
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		t.Fatalf("signing failed: %v", err)
	}
	return signed
}

func TestJWTMessageParserParse(t *testing.T) {
	ctx := context.Background()
	mechanism := testPushMechanism()
	parser := NewJWTMessageParser(&staticResolver{mechanism: mechanism})

	raw := signedPushMessage(t, testSharedSecret, jwt.MapClaims{
		"c": "Y2hhbGxlbmdl",
		"l": "amlb=03",
		"t": "120",
		"u": "uid-push-1",
		"k": "challenge",
		"n": "34,52,87",
	})

	notification, err := parser.Parse(ctx, "AUTHENTICATE:msg-1", raw)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if notification.Challenge != "Y2hhbGxlbmdl" {
		t.Fatalf("unexpected challenge %q", notification.Challenge)
	}
	if notification.LoadBalancerCookie != "amlb=03" {
		t.Fatalf("unexpected lb cookie %q", notification.LoadBalancerCookie)
	}
	if notification.PushType != PushTypeChallenge {
		t.Fatalf("unexpected push type %q", notification.PushType)
	}
	if notification.NumbersChallenge != "34,52,87" {
		t.Fatalf("unexpected numbers challenge %q", notification.NumbersChallenge)
	}
	if notification.State != StatePending {
		t.Fatalf("unexpected state %q", notification.State)
	}
	if notification.ExpiresAt != notification.ReceivedAt+120_000 {
		t.Fatalf("unexpected expiry %d for receivedAt %d", notification.ExpiresAt, notification.ReceivedAt)
	}
	if notification.Mechanism() != mechanism {
		t.Fatal("mechanism back-reference not set")
	}
}

func TestJWTMessageParserIgnoresNonAuthenticateMessages(t *testing.T) {
	parser := NewJWTMessageParser(&staticResolver{mechanism: testPushMechanism()})

	notification, err := parser.Parse(context.Background(), "REGISTER:msg-1", "whatever")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if notification != nil {
		t.Fatalf("non-authentication message produced %v", notification)
	}
}

func TestJWTMessageParserRejections(t *testing.T) {
	ctx := context.Background()
	mechanism := testPushMechanism()
	parser := NewJWTMessageParser(&staticResolver{mechanism: mechanism})

	valid := jwt.MapClaims{"c": "Y2hhbGxlbmdl", "u": "uid-push-1"}

	cases := []struct {
		name string
		raw  string
	}{
		{"garbage payload", "not-a-jwt"},
		{"missing mechanism claim", signedPushMessage(t, testSharedSecret, jwt.MapClaims{"c": "Y2hhbGxlbmdl"})},
		{"unknown mechanism", signedPushMessage(t, testSharedSecret, jwt.MapClaims{"c": "Y2hhbGxlbmdl", "u": "uid-unknown"})},
		{"wrong signing key", signedPushMessage(t, "d3JvbmdrZXl3cm9uZ2tleQ", valid)},
		{"missing challenge", signedPushMessage(t, testSharedSecret, jwt.MapClaims{"u": "uid-push-1"})},
		{"already expired", signedPushMessage(t, testSharedSecret, jwt.MapClaims{"c": "Y2hhbGxlbmdl", "u": "uid-push-1", "t": "-5"})},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := parser.Parse(ctx, "AUTHENTICATE:msg-1", tc.raw); !errors.Is(err, ErrInvalidNotification) {
				t.Fatalf("expected ErrInvalidNotification, got %v", err)
			}
		})
	}
}

func TestJWTMessageParserRejectsNonPushMechanism(t *testing.T) {
	oath := NewMechanism("issuerX", "alice", TypeTOTP, "uid-totp-1")
	oath.Secret = testSharedSecret
	parser := NewJWTMessageParser(&staticResolver{mechanism: oath})

	raw := signedPushMessage(t, testSharedSecret, jwt.MapClaims{"c": "Y2hhbGxlbmdl", "u": "uid-totp-1"})
	if _, err := parser.Parse(context.Background(), "AUTHENTICATE:msg-1", raw); !errors.Is(err, ErrInvalidNotification) {
		t.Fatalf("expected ErrInvalidNotification, got %v", err)
	}
}

// The negative TTL case above covers string claims; TTLs also arrive as JSON
// numbers.
func TestJWTMessageParserNumericTTL(t *testing.T) {
	mechanism := testPushMechanism()
	parser := NewJWTMessageParser(&staticResolver{mechanism: mechanism})

	raw := signedPushMessage(t, testSharedSecret, jwt.MapClaims{"c": "Y2hhbGxlbmdl", "u": "uid-push-1", "t": 90})
	notification, err := parser.Parse(context.Background(), "AUTHENTICATE:msg-1", raw)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if notification.ExpiresAt != notification.ReceivedAt+90_000 {
		t.Fatalf("unexpected expiry %d", notification.ExpiresAt)
	}
}

func TestDecodeSharedSecretAcceptsBothEncodings(t *testing.T) {
	raw := []byte("opensesameopensesame")

	urlForm := base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(raw)
	stdForm := base64.StdEncoding.EncodeToString(raw)

	for _, form := range []string{urlForm, stdForm} {
		decoded, err := decodeSharedSecret(form)
		if err != nil {
			t.Fatalf("decodeSharedSecret(%q) failed: %v", form, err)
		}
		if string(decoded) != string(raw) {
			t.Fatalf("decodeSharedSecret(%q) = %q", form, decoded)
		}
	}

	if _, err := decodeSharedSecret("!!!not base64!!!"); err == nil {
		t.Fatal("expected error for malformed secret")
	}
}

func TestSignChallengeResponse(t *testing.T) {
	mechanism := testPushMechanism()
	challenge := base64.StdEncoding.EncodeToString([]byte("random-challenge-bytes"))
	notification := NewPushNotification("uid-push-1", "AUTHENTICATE:msg-1")
	notification.Challenge = challenge

	signed, err := SignChallengeResponse(mechanism, notification, false, DecisionOptions{ChallengeResponse: "42"})
	if err != nil {
		t.Fatalf("SignChallengeResponse failed: %v", err)
	}

	key, err := decodeSharedSecret(mechanism.Secret)
	if err != nil {
		t.Fatalf("decodeSharedSecret failed: %v", err)
	}
	claims := jwt.MapClaims{}
	if _, err := jwt.NewParser(jwt.WithValidMethods([]string{"HS256"})).ParseWithClaims(signed, claims, func(*jwt.Token) (any, error) {
		return key, nil
	}); err != nil {
		t.Fatalf("response verification failed: %v", err)
	}

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte("random-challenge-bytes"))
	want := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	if claims["response"] != want {
		t.Fatalf("response claim = %v, want %v", claims["response"], want)
	}
	if claims["challengeResponse"] != "42" {
		t.Fatalf("challengeResponse claim = %v", claims["challengeResponse"])
	}
	if _, ok := claims["deny"]; ok {
		t.Fatal("approval must not carry a deny claim")
	}
}

func TestSignChallengeResponseDeny(t *testing.T) {
	mechanism := testPushMechanism()
	notification := NewPushNotification("uid-push-1", "AUTHENTICATE:msg-1")
	notification.Challenge = base64.StdEncoding.EncodeToString([]byte("bytes"))

	signed, err := SignChallengeResponse(mechanism, notification, true, DecisionOptions{})
	if err != nil {
		t.Fatalf("SignChallengeResponse failed: %v", err)
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(signed, claims); err != nil {
		t.Fatalf("ParseUnverified failed: %v", err)
	}
	if claims["deny"] != true {
		t.Fatalf("deny claim = %v", claims["deny"])
	}
}

func TestSignChallengeResponseMalformedChallenge(t *testing.T) {
	mechanism := testPushMechanism()
	notification := NewPushNotification("uid-push-1", "AUTHENTICATE:msg-1")
	notification.Challenge = "!!!not base64!!!"

	if _, err := SignChallengeResponse(mechanism, notification, false, DecisionOptions{}); !errors.Is(err, ErrVerificationFailed) {
		t.Fatalf("expected ErrVerificationFailed, got %v", err)
	}
}
