package http

import (
	"github.com/gofiber/fiber/v3"

	"github.com/dmitrijs2005/authkeeper/internal/api"
	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
	"github.com/dmitrijs2005/authkeeper/internal/server/validate"
)

const claimsLocal = "claims"

func toProfile(p *models.Profile) *api.Profile {
	return (*api.Profile)(p)
}

func bind(c fiber.Ctx, v any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.Bind().JSON(v); err != nil {
		return common.Validation("Invalid JSON body")
	}
	return nil
}

func (s *HTTPServer) signup(c fiber.Ctx) error {
	var req api.SignupRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := validate.Signup(&req); err != nil {
		return err
	}

	res, err := s.users.Signup(c.Context(), services.SignupInput{
		Email:    req.Email,
		Password: req.Password,
		Username: req.Username,
		Name:     req.Name,
		Phone:    req.Phone,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(api.AuthResponse{
		User:         toProfile(res.User),
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
	})
}

func (s *HTTPServer) login(c fiber.Ctx) error {
	var req api.LoginRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := validate.Login(&req); err != nil {
		return err
	}

	res, err := s.users.Login(c.Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(api.AuthResponse{
		User:         toProfile(res.User),
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
	})
}

func (s *HTTPServer) refresh(c fiber.Ctx) error {
	var req api.RefreshTokenRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := validate.Refresh(&req); err != nil {
		return err
	}

	pair, err := s.users.RefreshToken(c.Context(), req.RefreshToken)
	if err != nil {
		if statusOf(err) != fiber.StatusInternalServerError {
			s.logger.Debug(c.Context(), "refresh rejected", "token", common.Fingerprint(req.RefreshToken), "reason", common.Message(err))
		}
		return err
	}

	return c.JSON(api.TokenPairResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

func (s *HTTPServer) logout(c fiber.Ctx) error {
	var req api.LogoutRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := s.users.Logout(c.Context(), req.RefreshToken); err != nil {
		return err
	}
	return c.JSON(api.LogoutResponse{Message: "Logged out successfully"})
}

func (s *HTTPServer) getProfile(c fiber.Ctx) error {
	claims := c.Locals(claimsLocal).(*auth.Claims)

	p, err := s.users.GetProfile(c.Context(), claims.UserID)
	if err != nil {
		return err
	}
	return c.JSON(api.ProfileResponse{User: toProfile(p)})
}

func (s *HTTPServer) updateProfile(c fiber.Ctx) error {
	claims := c.Locals(claimsLocal).(*auth.Claims)

	var req api.UpdateProfileRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := validate.UpdateProfile(&req); err != nil {
		return err
	}

	p, err := s.users.UpdateProfile(c.Context(), claims.UserID, models.ProfileUpdate{
		Username: req.Username,
		Name:     req.Name,
		Phone:    req.Phone,
	})
	if err != nil {
		return err
	}
	return c.JSON(api.ProfileResponse{User: toProfile(p)})
}

// bearer verifies the access token and stores its claims in locals.
func (s *HTTPServer) bearer(c fiber.Ctx) error {
	token, err := auth.ParseBearer(c.Get(fiber.HeaderAuthorization))
	if err != nil {
		return err
	}
	claims, err := s.tokens.VerifyAccessToken(token)
	if err != nil {
		return err
	}
	c.Locals(claimsLocal, claims)
	return c.Next()
}
