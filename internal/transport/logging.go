// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/json"
	"sync/atomic"

	applog "audioviz/internal/log"
)

// LoggingTransport writes every payload to the debug log. Useful to watch
// features without a client attached.
type LoggingTransport struct {
	every  uint64
	count  atomic.Uint64
	closed atomic.Bool
}

// NewLoggingTransport logs one payload in every n (n < 1 logs all).
func NewLoggingTransport(n int) *LoggingTransport {
	tLog.Infof("using logging transport (every %d)", max(n, 1))
	return &LoggingTransport{every: uint64(max(n, 1))}
}

// Send logs data as JSON at debug level.
func (lt *LoggingTransport) Send(data any) error {
	if lt.closed.Load() {
		return ErrClosed
	}
	if lt.count.Add(1)%lt.every != 0 || applog.GetLevel() > applog.LevelDebug {
		return nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		tLog.Debugf("%T: %+v (marshal: %v)", data, data, err)
		return nil
	}
	tLog.Debugf("%s", b)
	return nil
}

// Count returns the number of payloads received.
func (lt *LoggingTransport) Count() uint64 { return lt.count.Load() }

// Close stops further sends.
func (lt *LoggingTransport) Close() error {
	lt.closed.Store(true)
	return nil
}

var _ Transport = (*LoggingTransport)(nil)
