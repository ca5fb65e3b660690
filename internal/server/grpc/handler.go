package grpc

import (
	"context"

	"github.com/dmitrijs2005/authkeeper/internal/api"
	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
	"github.com/dmitrijs2005/authkeeper/internal/server/validate"
)

func toProfile(p *models.Profile) *api.Profile {
	return (*api.Profile)(p)
}

func (s *GRPCServer) Signup(ctx context.Context, req *api.SignupRequest) (*api.AuthResponse, error) {
	if err := validate.Signup(req); err != nil {
		return nil, toStatus(err)
	}

	res, err := s.users.Signup(ctx, services.SignupInput{
		Email:    req.Email,
		Password: req.Password,
		Username: req.Username,
		Name:     req.Name,
		Phone:    req.Phone,
	})
	if err != nil {
		return nil, s.fail(ctx, "signup", err)
	}

	s.logger.Info(ctx, "Registered", "user_id", res.User.ID)
	return &api.AuthResponse{User: toProfile(res.User), AccessToken: res.Tokens.AccessToken, RefreshToken: res.Tokens.RefreshToken}, nil
}

func (s *GRPCServer) Login(ctx context.Context, req *api.LoginRequest) (*api.AuthResponse, error) {
	if err := validate.Login(req); err != nil {
		return nil, toStatus(err)
	}

	res, err := s.users.Login(ctx, req.Email, req.Password)
	if err != nil {
		return nil, s.fail(ctx, "login", err)
	}

	return &api.AuthResponse{User: toProfile(res.User), AccessToken: res.Tokens.AccessToken, RefreshToken: res.Tokens.RefreshToken}, nil
}

func (s *GRPCServer) RefreshToken(ctx context.Context, req *api.RefreshTokenRequest) (*api.TokenPairResponse, error) {
	if err := validate.Refresh(req); err != nil {
		return nil, toStatus(err)
	}

	pair, err := s.users.RefreshToken(ctx, req.RefreshToken)
	if err != nil {
		return nil, s.fail(ctx, "refresh", err, "token", common.Fingerprint(req.RefreshToken))
	}

	return &api.TokenPairResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
}

func (s *GRPCServer) Logout(ctx context.Context, req *api.LogoutRequest) (*api.LogoutResponse, error) {
	if err := s.users.Logout(ctx, req.RefreshToken); err != nil {
		return nil, s.fail(ctx, "logout", err)
	}
	return &api.LogoutResponse{Message: "Logged out successfully"}, nil
}

func (s *GRPCServer) GetProfile(ctx context.Context, _ *api.GetProfileRequest) (*api.ProfileResponse, error) {
	claims, err := claimsFrom(ctx)
	if err != nil {
		return nil, err
	}

	p, err := s.users.GetProfile(ctx, claims.UserID)
	if err != nil {
		return nil, s.fail(ctx, "get profile", err)
	}
	return &api.ProfileResponse{User: toProfile(p)}, nil
}

func (s *GRPCServer) UpdateProfile(ctx context.Context, req *api.UpdateProfileRequest) (*api.ProfileResponse, error) {
	claims, err := claimsFrom(ctx)
	if err != nil {
		return nil, err
	}
	if err := validate.UpdateProfile(req); err != nil {
		return nil, toStatus(err)
	}

	p, err := s.users.UpdateProfile(ctx, claims.UserID, models.ProfileUpdate{
		Username: req.Username,
		Name:     req.Name,
		Phone:    req.Phone,
	})
	if err != nil {
		return nil, s.fail(ctx, "update profile", err)
	}
	return &api.ProfileResponse{User: toProfile(p)}, nil
}

func (s *GRPCServer) Ping(ctx context.Context, req *api.PingRequest) (*api.PingResponse, error) {
	return &api.PingResponse{Status: "OK"}, nil
}

// claimsFrom reads what accessTokenInterceptor stored; a miss means the
// method was not registered as protected.
func claimsFrom(ctx context.Context) (*auth.Claims, error) {
	claims, ok := auth.ClaimsFromContext(ctx)
	if !ok {
		return nil, toStatus(common.Unauthorized("Authorization header is required"))
	}
	return claims, nil
}

// fail logs infrastructure errors and converts err to a status.
func (s *GRPCServer) fail(ctx context.Context, op string, err error, args ...any) error {
	st := toStatus(err)
	if isInternal(err) {
		s.logger.Error(ctx, op+" failed", append(args, "error", err)...)
	} else {
		s.logger.Debug(ctx, op+" rejected", append(args, "reason", common.Message(err))...)
	}
	return st
}
