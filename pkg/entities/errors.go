package entities

import "errors"

// ErrExpired means the referenced media can not be resolved anymore, the
// user has to search again.
var ErrExpired = errors.New("request expired")
