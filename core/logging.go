package core

// Package-level logger for the core package (C2-C10), following the
// teacher's SetWalletLogger convention in core/wallet.go: a swappable
// *logrus.Logger instance that embedding applications can redirect.

import "github.com/sirupsen/logrus"

var log = logrus.New()

// SetLogger redirects the core package's structured logging output.
func SetLogger(l *logrus.Logger) {
	if l != nil {
		log = l
	}
}
