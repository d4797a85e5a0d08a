// Package email sends plain-text mail through an authenticated SMTP relay,
// Gmail by default.
package email
