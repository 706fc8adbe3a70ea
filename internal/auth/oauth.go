package auth

import (
	"fmt"

	"golang.org/x/oauth2"
)

const (
	// Strava OAuth endpoints
	AuthURL  = "https://www.strava.com/oauth/authorize"
	TokenURL = "https://www.strava.com/oauth/token"

	// DefaultCallbackPort is the local port of the OAuth callback server
	DefaultCallbackPort = 8089
)

// Scopes requested from Strava (comma-separated in a single scope).
// activity:read_all is needed for private activities and their streams.
var Scopes = []string{
	"read,profile:read_all,activity:read_all",
}

// Config holds the OAuth client credentials
type Config struct {
	ClientID     string
	ClientSecret string
	CallbackPort int
}

// RedirectURL is the local callback Strava redirects to after consent
func (c Config) RedirectURL() string {
	port := c.CallbackPort
	if port == 0 {
		port = DefaultCallbackPort
	}
	return fmt.Sprintf("http://localhost:%d/callback", port)
}

// NewOAuthConfig creates an oauth2.Config for Strava
func NewOAuthConfig(cfg Config) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:   AuthURL,
			TokenURL:  TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		RedirectURL: cfg.RedirectURL(),
		Scopes:      Scopes,
	}
}

// AuthResult contains the token and athlete from a completed flow
type AuthResult struct {
	Token     *oauth2.Token
	AthleteID int64
}

// ExtractAthleteID reads the athlete ID Strava embeds in the token response
func ExtractAthleteID(token *oauth2.Token) int64 {
	athlete, ok := token.Extra("athlete").(map[string]any)
	if !ok {
		return 0
	}
	id, ok := athlete["id"].(float64)
	if !ok {
		return 0
	}
	return int64(id)
}
