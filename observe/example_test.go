package observe_test

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/jonwraymond/cfgrid/observe"
)

func ExampleNewLoggerWithWriter() {
	var buf bytes.Buffer
	logger := observe.NewLoggerWithWriter("info", &buf).With(observe.F("component", "cfcache"))

	logger.Debug(context.Background(), "dropped below level")
	logger.Warn(context.Background(), "kernel not persisted", observe.F("file", "wproj-3.cf"))

	fmt.Println(strings.Count(buf.String(), "\n"))
	fmt.Println(strings.Contains(buf.String(), `"file":"wproj-3.cf"`))
	// Output:
	// 1
	// true
}

func ExampleMiddleware_Run() {
	mw := observe.NopMiddleware()
	err := mw.Run(context.Background(), observe.Op{Component: "ftmachine", Name: "finalize"},
		func(ctx context.Context) error {
			fmt.Println("finalizing")
			return nil
		})
	fmt.Println(err)
	// Output:
	// finalizing
	// <nil>
}
