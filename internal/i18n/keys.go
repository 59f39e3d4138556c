// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Common
	KeyInternalError = "error.internal"
	KeyRateLimited   = "error.rate_limited"

	// Authentication
	KeyAuthRequired      = "auth.required"
	KeyAuthInvalidToken  = "auth.invalid_token"
	KeyAuthTokenExpired  = "auth.token_expired"
	KeyAuthUnknownRole   = "auth.unknown_role"
	KeyAuthLoginSuccess  = "auth.login_success"
	KeyAdminAccessDenied = "admin.access_denied"

	// Works
	KeyWorkRegistered = "work.registered"
	KeyWorkPublished  = "work.published"
	KeyWorkNotFound   = "work.not_found"
	KeyWorkIncomplete = "work.incomplete"

	// Licenses
	KeyLicenseCreated      = "license.created"
	KeyLicensePurchased    = "license.purchased"
	KeyLicenseNotFound     = "license.not_found"
	KeyLicenseIncomplete   = "license.incomplete"
	KeyLicenseInvalidPrice = "license.invalid_price"

	// Ledger
	KeyContractError   = "ledger.contract_error"
	KeyLedgerWithdrawn = "ledger.withdrawn"
	KeyInvalidAddress  = "ledger.invalid_address"
	KeyInvalidID       = "ledger.invalid_id"

	// Validation
	KeyValidationInvalid = "validation.invalid"

	// File Upload
	KeyFileUploadSuccess = "file.upload_success"
	KeyFileUploadFailed  = "file.upload_failed"
	KeyFileInvalidType   = "file.invalid_type"
	KeyFileTooLarge      = "file.too_large"
	KeyFileMissing       = "file.missing"
)
