// Package glog adapts github.com/golang/glog to feedsync.Logger. Debug maps
// to verbosity level V, everything else to the matching severity.
package glog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/golang/glog"

	"github.com/unkn0wn-root/feedsync"
)

var _ feedsync.Logger = Logger{}

// Logger writes through glog. V is the verbosity Debug logs at (default 2).
type Logger struct{ V glog.Level }

func (l Logger) debugLevel() glog.Level {
	if l.V == 0 {
		return 2
	}
	return l.V
}

func (l Logger) Debug(msg string, f feedsync.Fields) {
	if v := glog.V(l.debugLevel()); v {
		v.InfoDepth(1, line(msg, f))
	}
}
func (l Logger) Info(msg string, f feedsync.Fields)  { glog.InfoDepth(1, line(msg, f)) }
func (l Logger) Warn(msg string, f feedsync.Fields)  { glog.WarningDepth(1, line(msg, f)) }
func (l Logger) Error(msg string, f feedsync.Fields) { glog.ErrorDepth(1, line(msg, f)) }

// line renders msg followed by sorted key=value pairs.
func line(msg string, f feedsync.Fields) string {
	if len(f) == 0 {
		return msg
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(msg)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, f[k])
	}
	return b.String()
}
