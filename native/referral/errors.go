package referral

import "errors"

var (
	// ErrInvalidReferrer rejects self-referrals and the zero address.
	ErrInvalidReferrer = errors.New("referral: invalid referrer")
	// ErrUnqualifiedReferrer rejects referrers below the purchase threshold.
	ErrUnqualifiedReferrer = errors.New("referral: unqualified referrer")
	// ErrCircularReferral rejects links that would close a cycle of any length.
	ErrCircularReferral = errors.New("referral: circular referral")
	// ErrAlreadyReferred rejects changing an established referrer.
	ErrAlreadyReferred = errors.New("referral: already referred")
)
