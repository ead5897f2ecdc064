package background

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestNewReaperAppliesDefaults(t *testing.T) {
	r := NewReaper(nil, ReaperConfig{}, testLogger())
	assert.Equal(t, time.Minute, r.cfg.SweepInterval)
	assert.Equal(t, 15*time.Minute, r.cfg.StaleAfter)

	custom := ReaperConfig{SweepInterval: 10 * time.Second, StaleAfter: time.Minute}
	r = NewReaper(nil, custom, testLogger())
	assert.Equal(t, custom, r.cfg)
}

func TestStopWithoutStartIsNoop(t *testing.T) {
	r := NewReaper(nil, DefaultReaperConfig(), testLogger())
	assert.NotPanics(t, r.Stop)
}
