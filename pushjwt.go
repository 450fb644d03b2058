package authvault

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Message IDs from the verifier are prefixed with the requested operation.
// Only authentication messages produce notifications; everything else is not
// ours to handle.
const authenticateMessagePrefix = "AUTHENTICATE:"

// Claim names used by the verifier's push protocol.
const (
	claimChallenge          = "c"
	claimLoadBalancerCookie = "l"
	claimTTL                = "t"
	claimMechanismUID       = "u"
	claimPushType           = "k"
	claimNumbersChallenge   = "n"
)

// MechanismResolver looks up the mechanism a message is addressed to. The
// repository satisfies it; tests substitute fakes.
type MechanismResolver interface {
	GetMechanismByUID(ctx context.Context, mechanismUID string) (*Mechanism, error)
}

// JWTMessageParser is the default [MessageParser]. The raw message is a JWT
// signed by the verifier with the shared secret enrolled alongside the push
// mechanism: the mechanism UID claim is read before signature verification,
// the secret is resolved through the [MechanismResolver], and only then is the
// signature checked.
type JWTMessageParser struct {
	resolver MechanismResolver
}

// NewJWTMessageParser creates a parser that resolves signing secrets through
// resolver.
func NewJWTMessageParser(resolver MechanismResolver) *JWTMessageParser {
	return &JWTMessageParser{resolver: resolver}
}

// Parse implements [MessageParser].
func (p *JWTMessageParser) Parse(ctx context.Context, messageID, rawMessage string) (*PushNotification, error) {
	if !strings.HasPrefix(messageID, authenticateMessagePrefix) {
		return nil, nil
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(rawMessage, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidNotification, err)
	}

	mechanismUID, _ := claims[claimMechanismUID].(string)
	if mechanismUID == "" {
		return nil, fmt.Errorf("%w: missing mechanism claim", ErrInvalidNotification)
	}

	mechanism, err := p.resolver.GetMechanismByUID(ctx, mechanismUID)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown mechanism %s", ErrInvalidNotification, mechanismUID)
	}
	if mechanism.Type != TypePush {
		return nil, fmt.Errorf("%w: mechanism %s is not a push mechanism", ErrInvalidNotification, mechanismUID)
	}

	secret, err := decodeSharedSecret(mechanism.Secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidNotification, err)
	}
	if _, err := jwt.NewParser(jwt.WithValidMethods([]string{"HS256"})).Parse(rawMessage, func(*jwt.Token) (any, error) {
		return secret, nil
	}); err != nil {
		return nil, fmt.Errorf("%w: signature verification failed: %v", ErrInvalidNotification, err)
	}

	notification := NewPushNotification(mechanismUID, messageID)
	notification.Challenge, _ = claims[claimChallenge].(string)
	notification.NumbersChallenge, _ = claims[claimNumbersChallenge].(string)
	notification.LoadBalancerCookie, _ = claims[claimLoadBalancerCookie].(string)
	notification.PushType = pushTypeFromClaim(claims[claimPushType])
	notification.SetMechanism(mechanism)

	if ttl, ok := ttlSeconds(claims[claimTTL]); ok {
		notification.ExpiresAt = notification.ReceivedAt + ttl*1000
		if notification.Expired() {
			return nil, fmt.Errorf("%w: challenge already expired", ErrInvalidNotification)
		}
	}

	if notification.Challenge == "" {
		return nil, fmt.Errorf("%w: missing challenge claim", ErrInvalidNotification)
	}

	return notification, nil
}

func pushTypeFromClaim(value any) PushType {
	switch value {
	case string(PushTypeChallenge):
		return PushTypeChallenge
	case string(PushTypeBiometric):
		return PushTypeBiometric
	}
	return PushTypeDefault
}

// ttlSeconds reads the TTL claim in either its string or numeric form. A zero
// TTL means the challenge never expires; a negative one is kept so the expiry
// check can reject a message that arrived already stale.
func ttlSeconds(value any) (int64, bool) {
	switch v := value.(type) {
	case string:
		ttl, err := strconv.ParseInt(v, 10, 64)
		if err != nil || ttl == 0 {
			return 0, false
		}
		return ttl, true
	case float64:
		if v == 0 {
			return 0, false
		}
		return int64(v), true
	}
	return 0, false
}

// The shared secret is enrolled base64url-encoded; older enrollments used
// standard encoding.
func decodeSharedSecret(secret string) ([]byte, error) {
	if decoded, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(strings.TrimRight(secret, "=")); err == nil {
		return decoded, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return nil, fmt.Errorf("malformed shared secret: %w", err)
	}
	return decoded, nil
}

// SignChallengeResponse produces the signed JWT a [Responder] submits back to
// the verifier: the challenge answered with an HMAC-SHA256 over its decoded
// bytes, plus the deny flag and any numbers-challenge answer. Submission
// itself stays with the Responder; this helper only does the crypto.
func SignChallengeResponse(mechanism *Mechanism, notification *PushNotification, deny bool, opts DecisionOptions) (string, error) {
	secret, err := decodeSharedSecret(mechanism.Secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}

	challenge, err := base64.StdEncoding.DecodeString(notification.Challenge)
	if err != nil {
		return "", fmt.Errorf("%w: malformed challenge: %v", ErrVerificationFailed, err)
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(challenge)
	response := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	claims := jwt.MapClaims{
		"response": response,
	}
	if deny {
		claims["deny"] = true
	}
	if opts.ChallengeResponse != "" {
		claims["challengeResponse"] = opts.ChallengeResponse
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}
	return signed, nil
}
