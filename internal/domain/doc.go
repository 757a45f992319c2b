// Package domain holds the request model, target resolution and error kinds of the
// resume render-and-publish flow. It stays free of transport (Lambda, HTTP) and
// infrastructure (Chrome, S3, Redis) concerns.
package domain
