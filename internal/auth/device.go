// Rinkrelay - Multi-Camera Game Recording Coordination
// Copyright 2026 The Rinkrelay Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rinklab/rinkrelay

// Package auth issues and validates device tokens for camera endpoints.
//
// Cameras authenticate with a JWT signed with a shared HMAC secret. The
// token binds a device_id claim; handlers check that the claimed device
// matches the camera acting in the request, so one camera's token cannot
// drive another camera's stream.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrDeviceMismatch indicates a valid token presented for the wrong
// device.
var ErrDeviceMismatch = errors.New("token device does not match request device")

// DeviceClaims are the JWT claims carried by a device token.
type DeviceClaims struct {
	DeviceID string `json:"device_id"`
	jwt.RegisteredClaims
}

// DeviceTokenManager creates and validates device tokens using
// HMAC-SHA256.
type DeviceTokenManager struct {
	secret  []byte
	timeout time.Duration
}

// NewDeviceTokenManager creates a token manager. The secret must be
// non-empty; an empty secret means auth is disabled and the manager
// should not be constructed at all.
func NewDeviceTokenManager(secret string, timeout time.Duration) (*DeviceTokenManager, error) {
	if secret == "" {
		return nil, fmt.Errorf("device token secret is required but was empty")
	}
	if timeout <= 0 {
		timeout = 24 * time.Hour
	}
	return &DeviceTokenManager{
		secret:  []byte(secret),
		timeout: timeout,
	}, nil
}

// Generate creates a signed token for a device. Used by the provisioning
// path when a camera is enrolled.
func (m *DeviceTokenManager) Generate(deviceID string) (string, error) {
	now := time.Now()
	claims := &DeviceClaims{
		DeviceID: deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.timeout)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Validate checks a token's signature and lifetime and returns its
// claims. Tokens signed with anything other than HMAC are rejected to
// prevent algorithm confusion.
func (m *DeviceTokenManager) Validate(tokenString string) (*DeviceClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &DeviceClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*DeviceClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if claims.DeviceID == "" {
		return nil, fmt.Errorf("token carries no device_id claim")
	}
	return claims, nil
}

// ValidateFor validates a token and checks it was issued to the given
// device.
func (m *DeviceTokenManager) ValidateFor(tokenString, deviceID string) (*DeviceClaims, error) {
	claims, err := m.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.DeviceID != deviceID {
		return nil, fmt.Errorf("%w: token for %s, request from %s", ErrDeviceMismatch, claims.DeviceID, deviceID)
	}
	return claims, nil
}
