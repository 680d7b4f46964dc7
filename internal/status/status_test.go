package status_test

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/haxdai/SWBPlatform-sub000/internal/status"
)

func ExampleReader() {
	source := strings.NewReader("hello world")
	var builder strings.Builder

	reader := &status.Reader{
		Reader:   source,
		Progress: &status.Rewritable{Writer: &builder},
	}

	_, _ = reader.Read(make([]byte, 5))
	_, _ = reader.Read(make([]byte, 6))

	// replace all the '\r's with '\n's for testing
	fmt.Println(strings.ReplaceAll(builder.String(), "\r", "\n"))

	// Output: Read 5 B
	// Read 11 B
}

func ExampleWriter() {
	var builder strings.Builder

	writer := &status.Writer{
		Writer:   io.Discard,
		Progress: &status.Rewritable{Writer: &builder},
	}

	_, _ = writer.Write([]byte("hello"))
	_, _ = writer.Write([]byte(" world"))

	// replace all the '\r's with '\n's for testing
	fmt.Println(strings.ReplaceAll(builder.String(), "\r", "\n"))

	// Output: Wrote 5 B
	// Wrote 11 B
}

func TestStatus_Nil(t *testing.T) {
	var st *status.Status

	st.Start(status.StageOpen)
	st.SetCT(1, 2)
	st.Log("ignored")
	st.End()

	called := false
	if err := st.DoStage(status.StageImport, func() error { called = true; return nil }); err != nil {
		t.Fatal(err)
	}
	if !called {
		t.Error("DoStage did not call f")
	}
	if st.All() != nil {
		t.Error("nil status has stages")
	}
	st.Logger().Info("discarded")
}

func TestStatus_DoStage(t *testing.T) {
	var builder strings.Builder
	st := status.New(&builder, false)

	if err := st.DoStage(status.StageOpen, func() error {
		st.SetCT(5, 10)
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	failure := errors.New("broken")
	if err := st.DoStage(status.StageImport, func() error { return failure }); !errors.Is(err, failure) {
		t.Fatalf("expected %v, got %v", failure, err)
	}

	all := st.All()
	if len(all) != 2 {
		t.Fatalf("expected 2 stages, got %d", len(all))
	}
	if all[0].Stage != status.StageOpen || all[0].Current != 5 || all[0].Total != 10 {
		t.Errorf("unexpected first stage %#v", all[0])
	}
	if got := all[0].Progress(); got != "open: 5/10" {
		t.Errorf("unexpected progress %q", got)
	}

	output := builder.String()
	for _, want := range []string{"stage=open", "FAILED stage", "err=broken"} {
		if !strings.Contains(output, want) {
			t.Errorf("output does not contain %q", want)
		}
	}

	st.Close()
	st.Start(status.StageExport)
	if len(st.All()) != 2 {
		t.Error("closed status was changed")
	}
}
