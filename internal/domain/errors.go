package domain

import "errors"

var (
	ErrOrganizerNotFound = errors.New("organizer not found")
	ErrEventNotFound     = errors.New("event not found")
	ErrSubEventNotFound  = errors.New("subevent not found")
	ErrItemNotFound      = errors.New("item not found")
	ErrQuotaNotFound     = errors.New("quota not found")
	ErrTaxRuleNotFound   = errors.New("tax rule not found")
	ErrVoucherNotFound   = errors.New("voucher not found")
	ErrDiscountNotFound  = errors.New("discount not found")
	ErrGiftCardNotFound  = errors.New("gift card not found")
	ErrPositionNotFound  = errors.New("position not found")
	ErrListNotFound      = errors.New("check-in list not found")
	ErrTeamNotFound      = errors.New("team not found")
	ErrTokenNotFound     = errors.New("token not found")
	ErrWebhookNotFound   = errors.New("webhook not found")
	ErrExportNotFound    = errors.New("export not found")

	ErrInvalidID    = errors.New("invalid id")
	ErrInvalidSlug  = errors.New("invalid slug")
	ErrNameRequired = errors.New("name is required")

	ErrEventLive        = errors.New("event is live")
	ErrSlugTaken        = errors.New("slug already in use")
	ErrCodeTaken        = errors.New("voucher code already in use")
	ErrSecretTaken      = errors.New("secret already in use")
	ErrTaxRuleInUse     = errors.New("tax rule is used by at least one product")
	ErrVoucherRedeemed  = errors.New("voucher has already been redeemed")
	ErrVoucherNotUsable = errors.New("voucher is expired or fully used")

	// ErrLockNotAvailable signals a write that raced another writer for the
	// same inventory row. Callers should retry.
	ErrLockNotAvailable = errors.New("could not acquire a lock, please retry")

	ErrQuotaExceeded       = errors.New("not enough quota left for blocking vouchers")
	ErrInsufficientCredit  = errors.New("the gift card does not have sufficient credit for this operation")
	ErrCurrencyMismatch    = errors.New("currency does not match the gift card currency")
	ErrGiftCardUsed        = errors.New("gift card has transactions and cannot be deleted")
	ErrNonceRequired       = errors.New("nonce is required")
	ErrAlreadyRedeemed     = errors.New("position already checked in")
	ErrProductNotOnList    = errors.New("product is not part of this check-in list")
	ErrExportStillRunning  = errors.New("export is still running")
	ErrExportFailed        = errors.New("export failed")
	ErrUnknownExportFormat = errors.New("unknown export provider")

	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidToken     = errors.New("invalid or missing token")
)
