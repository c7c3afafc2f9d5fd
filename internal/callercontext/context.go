package callercontext

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
)

type Role string

const (
	RolePartner Role = "partner"
	RoleAdmin   Role = "admin"
	RoleSystem  Role = "system"
)

// ParseRole defaults to partner for anything it does not recognise.
func ParseRole(raw string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin
	case RoleSystem:
		return RoleSystem
	default:
		return RolePartner
	}
}

// Caller is the authenticated principal supplied by the identity provider.
type Caller struct {
	ExternalID string
	Role       Role
}

func (c Caller) IsAdmin() bool { return c.Role == RoleAdmin }

type callerKey struct{}
type partnerKey struct{}
type clientKey struct{}

type client struct {
	ip        string
	userAgent string
}

func WithCaller(ctx context.Context, caller Caller) context.Context {
	caller.ExternalID = strings.TrimSpace(caller.ExternalID)
	if caller.Role == "" {
		caller.Role = RolePartner
	}
	return context.WithValue(ctx, callerKey{}, caller)
}

// FromContext returns the caller, false when no identity was attached.
func FromContext(ctx context.Context) (Caller, bool) {
	if ctx == nil {
		return Caller{}, false
	}
	caller, ok := ctx.Value(callerKey{}).(Caller)
	if !ok || caller.ExternalID == "" {
		return Caller{}, false
	}
	return caller, true
}

// WithPartnerID caches the resolved partner for the rest of the request.
func WithPartnerID(ctx context.Context, partnerID snowflake.ID) context.Context {
	return context.WithValue(ctx, partnerKey{}, partnerID)
}

func PartnerIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	if ctx == nil {
		return 0, false
	}
	switch typed := ctx.Value(partnerKey{}).(type) {
	case snowflake.ID:
		return typed, typed != 0
	case int64:
		return snowflake.ID(typed), typed != 0
	case string:
		parsed, err := snowflake.ParseString(strings.TrimSpace(typed))
		if err == nil && parsed != 0 {
			return parsed, true
		}
	}
	return 0, false
}

func WithClient(ctx context.Context, ip, userAgent string) context.Context {
	return context.WithValue(ctx, clientKey{}, client{
		ip:        strings.TrimSpace(ip),
		userAgent: strings.TrimSpace(userAgent),
	})
}

func ClientFromContext(ctx context.Context) (ip string, userAgent string) {
	if ctx == nil {
		return "", ""
	}
	value, ok := ctx.Value(clientKey{}).(client)
	if !ok {
		return "", ""
	}
	return value.ip, value.userAgent
}
