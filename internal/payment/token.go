package payment

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var errMalformedToken = errors.New("malformed correlation token")

// CorrelationToken is the AccountReference sent with an STK push. The provider
// echoes it back in the callback and it is the only link between the two.
func CorrelationToken(userID, resourceID uint) string {
	return fmt.Sprintf("%d:%d", userID, resourceID)
}

// ParseCorrelationToken recovers the (user, resource) pair from a token.
// Both parts must be positive base-10 integers.
func ParseCorrelationToken(token string) (userID, resourceID uint, err error) {
	left, right, ok := strings.Cut(token, ":")
	if !ok {
		return 0, 0, errMalformedToken
	}
	if userID, err = parseID(left); err != nil {
		return 0, 0, err
	}
	if resourceID, err = parseID(right); err != nil {
		return 0, 0, err
	}
	return userID, resourceID, nil
}

func parseID(s string) (uint, error) {
	n, err := strconv.ParseUint(s, 10, strconv.IntSize)
	if err != nil || n == 0 {
		return 0, errMalformedToken
	}
	return uint(n), nil
}
