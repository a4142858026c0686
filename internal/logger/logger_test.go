// Copyright 2019 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package logger

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"testing"

	"go.scrcpygo.dev/mirrorclient/internal/color"
)

func TestWithLogger(t *testing.T) {
	l := NewLogger(DebugLevel, color.NewColor(color.ColorNever), nil, nil, "")
	ctx := context.Background()
	if v, ok := ctx.Value(globalLoggerKeyType{}).(*Logger); ok || v != nil {
		t.Fatalf("default context should not carry a logger, got %+v", v)
	}
	ctx = WithLogger(ctx, l)
	if v, ok := ctx.Value(globalLoggerKeyType{}).(*Logger); !ok || v == nil {
		t.Fatal("context updated with WithLogger should carry the logger")
	}
}

func TestFromContextDefault(t *testing.T) {
	l := FromContext(context.Background())
	if l == nil {
		t.Fatal("FromContext should never return nil")
	}
}

func TestNewLoggerDefaultFlags(t *testing.T) {
	l := NewLogger(InfoLevel, color.NewColor(color.ColorNever), nil, nil, "")
	if l.goLogger.Flags() != defaultFlags || l.goErrorLogger.Flags() != defaultFlags {
		t.Errorf("new logger should default to Ldate|Lmicroseconds")
	}
}

func TestSetFlags(t *testing.T) {
	flags := Ldate | Lshortfile
	l := NewLogger(InfoLevel, color.NewColor(color.ColorNever), nil, nil, "")
	l.SetFlags(flags)
	if l.goLogger.Flags() != flags || l.goErrorLogger.Flags() != flags {
		t.Errorf("SetFlags should apply to both loggers")
	}
}

func TestLogLevelStringAndSet(t *testing.T) {
	level := InfoLevel
	if level.String() != "info" {
		t.Errorf("InfoLevel.String() = %q, want %q", level.String(), "info")
	}
	level.Set("debug")
	if level != DebugLevel {
		t.Errorf("Set(\"debug\") left level at %q", level.String())
	}
}

func TestLevelFiltering(t *testing.T) {
	var out, errOut bytes.Buffer
	l := NewLogger(WarningLevel, color.NewColor(color.ColorNever), &out, &errOut, "")

	l.Debugf("should not appear")
	l.Infof("should not appear")
	l.Warnf("warn line")
	l.Errorf("error line")

	if out.Len() == 0 {
		t.Error("expected warn output on stdout")
	}
	if matched, _ := regexp.Match("should not appear", out.Bytes()); matched {
		t.Error("debug/info output leaked past WarningLevel filtering")
	}
	if errOut.Len() == 0 {
		t.Error("expected error output on stderr")
	}
}

func TestPrefix(t *testing.T) {
	prefix := "testprefix "
	infoLog := "Info log"
	var out bytes.Buffer
	l := NewLogger(DebugLevel, color.NewColor(color.ColorNever), &out, nil, prefix)

	l.Infof(infoLog)

	want := fmt.Sprintf("%s%s", prefix, infoLog)
	if matched, _ := regexp.MatchString(regexp.QuoteMeta(want), out.String()); !matched {
		t.Fatalf("stdout output %q did not contain %q", out.String(), want)
	}
}
