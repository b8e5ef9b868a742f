package source

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
)

func TestReadLines_TrimsAndSkipsBlank(t *testing.T) {
	in := "$GPGGA,1\r\n\r\n   \n  $GPRMC,2  \n$GPVTG,3"
	var got []string
	err := ReadLines(context.Background(), strings.NewReader(in), func(line string) error {
		got = append(got, line)
		return nil
	})
	if err != nil {
		t.Fatalf("ReadLines: %v", err)
	}
	want := []string{"$GPGGA,1", "$GPRMC,2", "$GPVTG,3"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("lines=%q want %q", got, want)
	}
}

func TestReadLines_HandlerErrorStops(t *testing.T) {
	boom := errors.New("boom")
	n := 0
	err := ReadLines(context.Background(), strings.NewReader("a\nb\nc\n"), func(string) error {
		n++
		if n == 2 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err=%v want boom", err)
	}
	if n != 2 {
		t.Fatalf("calls=%d want 2", n)
	}
}

func TestReadLines_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	n := 0
	err := ReadLines(ctx, strings.NewReader("a\nb\nc\n"), func(string) error {
		n++
		cancel()
		return nil
	})
	if err != nil {
		t.Fatalf("err=%v want nil", err)
	}
	if n != 1 {
		t.Fatalf("calls=%d want 1", n)
	}
}

func TestReadLines_SkipsOversizedLine(t *testing.T) {
	in := "$GPRMC,1\n" + strings.Repeat("x", 70*1024) + "\n$GPGGA,2\n$GPVTG,3"
	var got []string
	err := ReadLines(context.Background(), strings.NewReader(in), func(line string) error {
		got = append(got, line)
		return nil
	})
	if err != nil {
		t.Fatalf("ReadLines: %v", err)
	}
	want := []string{"$GPRMC,1", "$GPGGA,2", "$GPVTG,3"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("lines=%q want %q", got, want)
	}
}

func TestReadLines_OversizedFinalLine(t *testing.T) {
	in := "$GPRMC,1\n" + strings.Repeat("x", 70*1024)
	var got []string
	err := ReadLines(context.Background(), strings.NewReader(in), func(line string) error {
		got = append(got, line)
		return nil
	})
	if err != nil {
		t.Fatalf("ReadLines: %v", err)
	}
	if strings.Join(got, "|") != "$GPRMC,1" {
		t.Fatalf("lines=%q", got)
	}
}

func TestReadLines_ReadErrorReturned(t *testing.T) {
	boom := errors.New("boom")
	r := io.MultiReader(strings.NewReader("$GPRMC,1\n"), iotest.ErrReader(boom))
	n := 0
	err := ReadLines(context.Background(), r, func(string) error {
		n++
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err=%v want boom", err)
	}
	if n != 1 {
		t.Fatalf("calls=%d want 1", n)
	}
}
