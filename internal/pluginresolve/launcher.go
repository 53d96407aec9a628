package pluginresolve

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"text/template"

	"github.com/protocgen/core/internal/digest"
	"github.com/protocgen/core/internal/tmpspace"
)

var posixLauncherTemplate = template.Must(template.New("posix").Parse(
	`#!/bin/sh
exec java {{range .JvmArgs}}{{.}} {{end}}-cp '{{.Classpath}}' {{.MainClass}} "$@"
`))

var windowsLauncherTemplate = template.Must(template.New("windows").Parse(
	`@echo off
java {{range .JvmArgs}}{{.}} {{end}}-cp "{{.Classpath}}" {{.MainClass}} %*
`))

type launcherData struct {
	Classpath string
	MainClass string
	JvmArgs   []string
}

// writeLauncherScript renders a POSIX shell or Windows batch launcher for a
// RepoJvm plugin, matching the platform the orchestrator is running on, and
// writes it into the execution's scratch space, executable on POSIX.
func writeLauncherScript(space *tmpspace.Space, order int, classpath []string, mainClass string, jvmArgs []string) (string, error) {
	sep := ":"
	tmpl := posixLauncherTemplate
	ext := ""
	if runtime.GOOS == "windows" {
		sep = ";"
		tmpl = windowsLauncherTemplate
		ext = ".bat"
	}
	data := launcherData{
		Classpath: strings.Join(classpath, sep),
		MainClass: mainClass,
		JvmArgs:   jvmArgs,
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("pluginresolve: render launcher: %w", err)
	}
	name := fmt.Sprintf("launcher-%d%s", order, ext)
	path, err := space.WriteFile(buf.Bytes(), 0o755, "plugins", name)
	if err != nil {
		return "", err
	}
	return path, nil
}

func readAll(r io.Reader) ([]byte, error) {
	return io.ReadAll(r)
}

func newReader(data []byte) io.Reader {
	return bytes.NewReader(data)
}

func verifyFileDigest(path string, expected digest.Digest) error {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return err
	}
	defer file.Close()
	return digest.Verify(expected, file)
}
