package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/victornm/portal/internal/account"
	"github.com/victornm/portal/internal/domain"
	"github.com/victornm/portal/internal/jobs"
	"github.com/victornm/portal/internal/videos"
)

type (
	BrowseJobsRequest struct {
		Page int `form:"page" binding:"min=0"`
	}

	// SaveJobResponse names the job the client drops from the page it is showing.
	SaveJobResponse struct {
		JobID          domain.ID `json:"jobId"`
		RemoveFromPage bool      `json:"removeFromPage"`
	}

	MarkWatchedResponse struct {
		Tracked bool `json:"tracked"`
	}

	ChangePasswordRequest struct {
		OldPassword       string `json:"oldPassword"`
		NewPassword       string `json:"newPassword"`
		ConfirmedPassword string `json:"confirmedPassword"`
	}

	SendOTPRequest struct {
		Email string `json:"email" binding:"required"`
	}

	VerifyOTPRequest struct {
		Email string `json:"email" binding:"required"`
		OTP   string `json:"otp" binding:"required"`
	}

	ResetPasswordRequest struct {
		Email             string `json:"email" binding:"required"`
		Password          string `json:"password"`
		ConfirmedPassword string `json:"confirmedPassword"`
	}

	MessageResponse struct {
		Message string `json:"message"`
	}
)

func (a *API) BrowseJobs(c *gin.Context) {
	var req BrowseJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		abort(c, bindError(err))
		return
	}

	page, err := a.js.Browse(c.Request.Context(), jobs.BrowseRequest{
		ApplicantID: applicantID(c),
		Page:        req.Page,
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

func (a *API) SaveJob(c *gin.Context) {
	jobID := domain.ID(c.Param("id"))
	err := a.js.SaveJob(c.Request.Context(), jobs.SaveJobRequest{
		ApplicantID: applicantID(c),
		JobID:       jobID,
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, SaveJobResponse{JobID: jobID, RemoveFromPage: true})
}

func (a *API) RecommendedVideos(c *gin.Context) {
	carousel, err := a.vs.Recommended(c.Request.Context(), videos.RecommendedRequest{
		ApplicantID: applicantID(c),
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, carousel)
}

func (a *API) MarkWatched(c *gin.Context) {
	tracked, err := a.vs.MarkWatched(c.Request.Context(), videos.MarkWatchedRequest{
		ApplicantID: applicantID(c),
		VideoID:     domain.ID(c.Param("id")),
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, MarkWatchedResponse{Tracked: tracked})
}

func (a *API) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, bindError(err))
		return
	}

	err := a.acc.ChangePassword(c.Request.Context(), account.ChangePasswordRequest{
		ApplicantID:       applicantID(c),
		OldPassword:       req.OldPassword,
		NewPassword:       req.NewPassword,
		ConfirmedPassword: req.ConfirmedPassword,
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Password changed successfully"})
}

func (a *API) SendOTP(c *gin.Context) {
	var req SendOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, bindError(err))
		return
	}

	if err := a.acc.SendOTP(c.Request.Context(), account.SendOTPRequest{Email: req.Email}); err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "OTP sent successfully"})
}

func (a *API) VerifyOTP(c *gin.Context) {
	var req VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, bindError(err))
		return
	}

	err := a.acc.VerifyOTP(c.Request.Context(), account.VerifyOTPRequest{Email: req.Email, OTP: req.OTP})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "OTP verified successfully"})
}

func (a *API) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, bindError(err))
		return
	}

	err := a.acc.ResetPassword(c.Request.Context(), account.ResetPasswordRequest{
		Email:             req.Email,
		Password:          req.Password,
		ConfirmedPassword: req.ConfirmedPassword,
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Password reset was done successfully"})
}
