// Package auth identifies the device behind each request.
//
// Devices authenticate with HS256 JWTs signed with the configured
// auth.jwt_secret; the device id is the "sub" claim. Tokens are minted with
//
//	tatasbox token <device-id>
//
// When no secret is configured, DeviceMiddleware admits every request as
// the anonymous "local" device, which suits a single-user install.
package auth
