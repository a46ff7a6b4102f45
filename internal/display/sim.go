package display

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/Alpha162/armoured-candles/internal/render"
	"github.com/Alpha162/armoured-candles/pkg/logger"
)

// SimDriver is a panel stand-in for development machines without the e-paper
// hardware attached. When frameDir is non-empty each pushed frame is also
// written there as a numbered BMP so rendering changes can be eyeballed.
type SimDriver struct {
	frameDir string
	seq      int
	log      *logrus.Entry
}

// NewSimDriver builds a simulator. frameDir may be empty to skip frame dumps.
func NewSimDriver(frameDir string, log *logrus.Logger) *SimDriver {
	return &SimDriver{
		frameDir: frameDir,
		log:      logger.WithComponent(log, "display-sim"),
	}
}

func (s *SimDriver) Init() error {
	s.log.Info("Simulated panel initialized")
	return nil
}

func (s *SimDriver) DisplayFull(fb *render.Framebuffer) error {
	return s.dump(fb, "full")
}

func (s *SimDriver) DisplayPartial(prev, next *render.Framebuffer) error {
	return s.dump(next, "partial")
}

func (s *SimDriver) Sleep() error {
	s.log.Debug("Simulated panel sleeping")
	return nil
}

func (s *SimDriver) dump(fb *render.Framebuffer, kind string) error {
	s.seq++
	if s.frameDir == "" {
		s.log.WithFields(logrus.Fields{"seq": s.seq, "kind": kind}).Debug("Frame pushed")
		return nil
	}
	if err := os.MkdirAll(s.frameDir, 0o755); err != nil {
		return fmt.Errorf("creating frame dir: %w", err)
	}
	name := filepath.Join(s.frameDir, fmt.Sprintf("frame_%04d_%s.bmp", s.seq, kind))
	if err := os.WriteFile(name, render.EncodeBMP(fb), 0o644); err != nil {
		return fmt.Errorf("writing frame %s: %w", name, err)
	}
	s.log.WithFields(logrus.Fields{"seq": s.seq, "kind": kind, "file": name}).Debug("Frame dumped")
	return nil
}
