package service

import (
	"net/http"

	"newsscope/pkg/apperr"
)

// 对外暴露的业务错误，handler 通过 response.Fail 统一映射状态码
var (
	ErrInvalidInput        = apperr.Invalid("Invalid request data")
	ErrAccountNotFound     = apperr.New(apperr.NotFound, "User not found", "User not found")
	ErrInsufficientCredits = apperr.New(apperr.InsufficientCredits, "Insufficient credits",
		"You don't have enough credits. Please purchase more credits to continue.")
	ErrLedgerBusy = apperr.New(apperr.Internal, "Service busy",
		"Too many concurrent requests, please try again").WithStatus(http.StatusServiceUnavailable)

	ErrInvalidPackage     = apperr.New(apperr.Validation, "Invalid package", "Please select a valid credit package")
	ErrGatewayUnavailable = apperr.New(apperr.Upstream, "Payment gateway not configured",
		"Payment service is currently unavailable").WithStatus(http.StatusServiceUnavailable)
	ErrVerificationFailed = apperr.New(apperr.Validation, "Payment verification failed", "Invalid payment signature")
	ErrOrderNotFound      = apperr.New(apperr.NotFound, "Order not found", "Payment order not found")
	ErrAlreadyProcessed   = apperr.New(apperr.Conflict, "Order already processed",
		"This payment has already been processed").WithStatus(http.StatusBadRequest)
	ErrOrderNotPayable = apperr.New(apperr.Conflict, "Order not payable",
		"This order can no longer be paid, please contact support")

	ErrAnalyzerUnavailable = apperr.New(apperr.Upstream, "Analyzer not configured",
		"News analysis is currently unavailable").WithStatus(http.StatusServiceUnavailable)
	ErrAnalyzerFailure = apperr.New(apperr.Upstream, "Analysis failed",
		"The analysis could not be completed, please try again later")
	ErrAnalysisNotFound = apperr.New(apperr.NotFound, "Analysis not found", "Analysis not found")

	ErrUserExists         = apperr.New(apperr.Conflict, "User exists", "An account with this email already exists")
	ErrInvalidCredentials = apperr.New(apperr.AuthRequired, "Invalid credentials", "Invalid email or password")
	ErrAccountDisabled    = apperr.New(apperr.Forbidden, "Account disabled", "This account has been deactivated")
	ErrInvalidResetToken  = apperr.New(apperr.Validation, "Invalid token",
		"The password reset link is invalid or has expired")
	ErrMissingFields = apperr.New(apperr.Validation, "Missing required fields", "Please fill in all required fields")
	ErrInvalidEmail  = apperr.New(apperr.Validation, "Invalid email", "Please provide a valid email address")
	ErrWeakPassword  = apperr.New(apperr.Validation, "Weak password", "Password must be at least 6 characters long")
	ErrMailFailure   = apperr.New(apperr.Upstream, "Email delivery failed", "Failed to send email, please try again later")
)

// wrap 保留哨兵错误的分类，同时把底层原因挂在 Err 上供日志使用
func wrap(sentinel *apperr.Error, cause error) error {
	cp := *sentinel
	cp.Err = cause
	return &cp
}

// invalid 带具体提示的参数错误，errors.Is(err, ErrInvalidInput) 仍然成立
func invalid(message string) error {
	cp := *ErrInvalidInput
	cp.Message = message
	return &cp
}
