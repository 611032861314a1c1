package services

import (
	"fmt"

	"interview-lab/auth"
	"interview-lab/errors"
	"interview-lab/repositories"
)

type IAuthService interface {
	Login(email, password string) (Token, error)
	Bootstrap(email, password string) (string, error)
}

type AuthService struct {
	operators repositories.IOperatorRepository
	tokens    auth.TokenManager
}

type Token string

func NewAuthService(operators repositories.IOperatorRepository, tokens auth.TokenManager) IAuthService {
	return &AuthService{operators: operators, tokens: tokens}
}

// Bootstrap creates an operator account. Used at startup to seed the first
// account from configuration; an existing account is left untouched.
func (s *AuthService) Bootstrap(email, password string) (string, error) {
	valReq := auth.LoginRequest{
		Email:    email,
		Password: password,
	}

	// Validate complexity before any expensive cryptographic operation.
	if err := auth.ValidateNewPassword(valReq); err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrInvalidPassword, err)
	}

	// Hashed here to keep the repository unaware of plain passwords.
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hashing failed: %w", err)
	}

	return s.operators.CreateOperator(email, hashedPassword)
}

func (s *AuthService) Login(email, password string) (Token, error) {
	operator, err := s.operators.GetOperatorByEmail(email)
	if err != nil {
		// Generic error to prevent account enumeration.
		return "", errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, operator.PasswordHash)
	if err != nil || !match {
		return "", errors.ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(operator.ID, operator.Roles)
	if err != nil {
		return "", errors.ErrTokenGeneration
	}

	return Token(token), nil
}
