package batchget

import "errors"

// ErrReaderClosed is returned by MultiGet after the Reader has been closed.
var ErrReaderClosed = errors.New("batchget: reader closed")
