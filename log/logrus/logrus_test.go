package logrus

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/unkn0wn-root/feedsync"
)

func TestLogrusLoggerFields(t *testing.T) {
	base, hook := test.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)
	l := LogrusLogger{E: logrus.NewEntry(base).WithField("component", "store")}

	l.Info("invalidated", feedsync.Fields{"pattern": "recentPosts", "refetched": 2})
	l.Debug("plain", nil)

	if len(hook.Entries) != 2 {
		t.Fatalf("entries=%d want 2", len(hook.Entries))
	}
	e := hook.Entries[0]
	if e.Level != logrus.InfoLevel || e.Message != "invalidated" {
		t.Fatalf("entry=%+v", e)
	}
	if e.Data["pattern"] != "recentPosts" || e.Data["refetched"] != 2 || e.Data["component"] != "store" {
		t.Fatalf("data=%v", e.Data)
	}
	if hook.LastEntry().Level != logrus.DebugLevel {
		t.Fatalf("last level=%v", hook.LastEntry().Level)
	}
}
