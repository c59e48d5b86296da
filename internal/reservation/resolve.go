package reservation

import (
	"context"
	"errors"
	"strings"

	"github.com/ariefcatur/canteen-reservations/internal/wallet"
)

var errAmbiguousUser = errors.New("student matches more than one user")

// matchLegacyUser is the best-effort owner lookup for reservations made
// without a signed-in user: the free-text student field is compared with
// user ids, names and emails. Only a unique match is accepted.
func matchLegacyUser(ctx context.Context, dir wallet.Directory, student string) (wallet.User, bool, error) {
	student = strings.TrimSpace(student)
	if student == "" {
		return wallet.User{}, false, nil
	}
	users, err := dir.Search(ctx, student)
	if err != nil {
		return wallet.User{}, false, err
	}
	switch len(users) {
	case 0:
		return wallet.User{}, false, nil
	case 1:
		return users[0], true, nil
	default:
		return wallet.User{}, false, errAmbiguousUser
	}
}
