package session

import "errors"

var errIDExhaustion = errors.New("exhausted attempts to generate a unique session id")
