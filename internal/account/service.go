// Package account changes and resets applicant passwords.
package account

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/victornm/portal/internal/backend"
	"github.com/victornm/portal/internal/domain"
	"github.com/victornm/portal/internal/errors"
)

// Backend answers of the password endpoints.
const (
	replyPasswordUpdated  = "Password updated and stored"
	replyOldPasswordWrong = "Your old password not matching with data base password"
	replySameAsOld        = "your new password should not be same as old password"
	replyOTPSent          = "OTP sent successfully"
	replyOTPVerified      = "OTP verified successfully"
	replyPasswordReset    = "Password reset was done successfully"
)

var validate = validator.New()

type Config struct {
	Backend *backend.Client
	Cipher  *Cipher
}

type Service struct {
	backend *backend.Client
	cipher  *Cipher
}

func NewService(c Config) *Service {
	return &Service{
		backend: c.Backend,
		cipher:  c.Cipher,
	}
}

type ChangePasswordRequest struct {
	ApplicantID       domain.ID
	OldPassword       string
	NewPassword       string
	ConfirmedPassword string
}

// FieldErrors maps a form field to what is wrong with it.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	parts := make([]string, 0, len(fe))
	for _, f := range []string{"oldPassword", "newPassword", "confirmedPassword"} {
		if msg, ok := fe[f]; ok {
			parts = append(parts, msg)
		}
	}
	return strings.Join(parts, " ")
}

func (r ChangePasswordRequest) validate() error {
	fe := FieldErrors{}
	if strings.TrimSpace(r.OldPassword) == "" {
		fe["oldPassword"] = "Old password is required."
	}

	switch {
	case strings.TrimSpace(r.NewPassword) == "":
		fe["newPassword"] = "New password is required."
	case !validNewPassword(r.NewPassword):
		fe["newPassword"] = newPasswordPolicy
	}

	switch {
	case strings.TrimSpace(r.ConfirmedPassword) == "":
		fe["confirmedPassword"] = "Confirm password is required."
	case r.NewPassword != r.ConfirmedPassword:
		fe["confirmedPassword"] = "Passwords do not match."
	}

	if len(fe) == 0 {
		return nil
	}
	return errors.New(errors.CodeInvalidArgument, errors.WithMessage(fe.Error()), errors.WithCause(fe))
}

// ChangePassword replaces the password of a signed in applicant. Both passwords travel encrypted.
func (s *Service) ChangePassword(ctx context.Context, req ChangePasswordRequest) error {
	if req.ApplicantID.IsZero() {
		return errors.InvalidArgument("applicant id is required")
	}
	if err := req.validate(); err != nil {
		return err
	}

	oldPassword, ivOld, err := s.cipher.Encrypt(req.OldPassword)
	if err != nil {
		return errors.Internal(err)
	}
	newPassword, ivNew, err := s.cipher.Encrypt(req.NewPassword)
	if err != nil {
		return errors.Internal(err)
	}

	var reply string
	err = s.backend.Do(ctx, backend.Request{
		Operation: "change_password",
		Method:    http.MethodPost,
		Path:      "/applicant/authenticateUsers/" + url.PathEscape(req.ApplicantID.String()),
		Body: map[string]string{
			"oldPassword": oldPassword,
			"newPassword": newPassword,
			"ivOld":       ivOld,
			"ivNew":       ivNew,
		},
	}, &reply)
	if err != nil {
		switch errors.Message(err) {
		case replyOldPasswordWrong:
			return errors.New(errors.CodeInvalidArgument, errors.WithMessage("old password is incorrect"), errors.WithCause(err))
		case replySameAsOld:
			return errors.New(errors.CodeInvalidArgument, errors.WithMessage("old password and new password should not be same"), errors.WithCause(err))
		}
		return fmt.Errorf("change password: %w", err)
	}

	if reply != replyPasswordUpdated {
		return errors.New(errors.CodeInvalidArgument,
			errors.WithMessage("Password change failed. Old password is wrong."),
			errors.WithCause(fmt.Errorf("backend replied %q", reply)))
	}

	zap.L().Info("account: password changed", zap.String("applicant_id", req.ApplicantID.String()))
	return nil
}

type SendOTPRequest struct {
	Email string
}

// SendOTP mails a one time password to start the forgot password flow.
func (s *Service) SendOTP(ctx context.Context, req SendOTPRequest) error {
	if err := validate.Var(req.Email, "required,email"); err != nil {
		return errors.New(errors.CodeInvalidArgument, errors.WithMessage("Enter valid email address"), errors.WithCause(err))
	}

	var reply string
	err := s.backend.Do(ctx, backend.Request{
		Operation: "send_otp",
		Method:    http.MethodPost,
		Path:      "/applicant/forgotpasswordsendotp",
		Body:      map[string]string{"email": req.Email},
		Anonymous: true,
	}, &reply)
	if err != nil {
		if errors.Is(err, errors.CodeUnavailable) {
			return fmt.Errorf("send otp: %w", err)
		}
		return errors.New(errors.CodeInvalidArgument, errors.WithMessage("Enter valid email address"), errors.WithCause(err))
	}

	if reply != replyOTPSent {
		return errors.New(errors.CodeNotFound,
			errors.WithMessage("User with the given Email Id was not found in the system"),
			errors.WithCause(fmt.Errorf("backend replied %q", reply)))
	}
	return nil
}

type VerifyOTPRequest struct {
	Email string
	OTP   string
}

func (s *Service) VerifyOTP(ctx context.Context, req VerifyOTPRequest) error {
	const failed = "OTP verification failed. Please enter a valid OTP."

	if err := validate.Var(req.Email, "required,email"); err != nil {
		return errors.New(errors.CodeInvalidArgument, errors.WithMessage("Enter valid email address"), errors.WithCause(err))
	}
	if strings.TrimSpace(req.OTP) == "" {
		return errors.New(errors.CodeInvalidArgument, errors.WithMessage(failed))
	}

	var reply string
	err := s.backend.Do(ctx, backend.Request{
		Operation: "verify_otp",
		Method:    http.MethodPost,
		Path:      "/applicant/applicantverify-otp",
		Body:      map[string]string{"email": req.Email, "otp": req.OTP},
		Anonymous: true,
	}, &reply)
	if err != nil && errors.Is(err, errors.CodeUnavailable) {
		return fmt.Errorf("verify otp: %w", err)
	}
	if err != nil || reply != replyOTPVerified {
		cause := err
		if cause == nil {
			cause = fmt.Errorf("backend replied %q", reply)
		}
		return errors.New(errors.CodeInvalidArgument, errors.WithMessage(failed), errors.WithCause(cause))
	}
	return nil
}

type ResetPasswordRequest struct {
	Email             string
	Password          string
	ConfirmedPassword string
}

// ResetPassword sets a new password after the OTP was verified. The passwords must match before the
// policy is checked; the first broken rule is reported.
func (s *Service) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	if err := validate.Var(req.Email, "required,email"); err != nil {
		return errors.New(errors.CodeInvalidArgument, errors.WithMessage("Enter valid email address"), errors.WithCause(err))
	}
	if req.Password != req.ConfirmedPassword {
		return errors.New(errors.CodeInvalidArgument,
			errors.WithMessage("Passwords do not match. Please make sure the passwords match."))
	}
	if msg := resetPasswordProblem(req.Password); msg != "" {
		return errors.New(errors.CodeInvalidArgument, errors.WithMessage(msg))
	}

	var reply string
	err := s.backend.Do(ctx, backend.Request{
		Operation: "reset_password",
		Method:    http.MethodPost,
		Path:      "/applicant/applicantreset-password/" + url.PathEscape(req.Email),
		Body: map[string]string{
			"password":          req.Password,
			"confirmedPassword": req.ConfirmedPassword,
		},
		Anonymous: true,
	}, &reply)
	if err != nil {
		return errors.New(errors.CodeBackend,
			errors.WithMessage("An error occurred. Please try again later."),
			errors.WithCause(err))
	}

	if reply != replyPasswordReset {
		return errors.New(errors.CodeBackend,
			errors.WithMessage("Password reset failed. Please try again later."),
			errors.WithCause(fmt.Errorf("backend replied %q", reply)))
	}

	zap.L().Info("account: password reset")
	return nil
}
