package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("heal", func() {
	var dir string

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "heal")
		Expect(err).ToNot(HaveOccurred())
		DeferCleanup(os.RemoveAll, dir)

		cfg := "state_dir: " + dir + "\nembedding_model:\n  default_provider: local\n"
		Expect(os.WriteFile(filepath.Join(dir, "config.yml"), []byte(cfg), 0644)).To(Succeed())
	})

	execute := func(args ...string) (string, error) {
		cmd := newRootCmd()
		out := &bytes.Buffer{}
		cmd.SetOut(out)
		cmd.SetErr(out)
		cmd.SetArgs(append([]string{"--config", filepath.Join(dir, "config.yml")}, args...))
		err := cmd.Execute()
		return out.String(), err
	}

	It("runs a healthy function and prints its state", func() {
		src := filepath.Join(dir, "add.go")
		Expect(os.WriteFile(src, []byte("package main\n\nfunc add(a, b int) int { return a + b }\n"), 0644)).To(Succeed())

		out, err := execute("run", "--file", src, "--args", "[2, 3]")
		Expect(err).ToNot(HaveOccurred())

		state := map[string]any{}
		Expect(json.Unmarshal([]byte(out), &state)).To(Succeed())
		Expect(state["status"]).To(Equal("healthy"))
		Expect(filepath.Join(dir, "runs.json")).To(BeAnExistingFile())
	})

	It("rejects arguments that are not a JSON array", func() {
		src := filepath.Join(dir, "add.go")
		Expect(os.WriteFile(src, []byte("func add(a, b int) int { return a + b }\n"), 0644)).To(Succeed())

		_, err := execute("run", "--file", src, "--args", "2,3")
		Expect(err).To(HaveOccurred())
	})

	It("refuses files importing forbidden packages", func() {
		src := filepath.Join(dir, "bad.go")
		Expect(os.WriteFile(src, []byte("import \"os\"\n\nfunc bad() { os.Exit(1) }\n"), 0644)).To(Succeed())

		_, err := execute("run", "--file", src)
		Expect(err).To(MatchError(ContainSubstring("refusing to run")))
	})

	It("resets the memory only when confirmed", func() {
		_, err := execute("memory", "reset")
		Expect(err).To(MatchError(ContainSubstring("--yes")))

		out, err := execute("memory", "reset", "--yes")
		Expect(err).ToNot(HaveOccurred())
		Expect(out).To(ContainSubstring("memory cleared"))

		out, err = execute("memory", "search", "divide by zero", "--json")
		Expect(err).ToNot(HaveOccurred())
		Expect(out).To(ContainSubstring("[]"))
	})

	It("searches an empty memory", func() {
		out, err := execute("memory", "search", "divide by zero", "--json")
		Expect(err).ToNot(HaveOccurred())
		Expect(out).To(ContainSubstring("[]"))
	})

	It("submits the run to a server with --server", func() {
		var got map[string]any
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			Expect(r.URL.Path).To(Equal("/run_agent"))
			Expect(r.Header.Get("Authorization")).To(Equal("Bearer k1"))
			Expect(json.NewDecoder(r.Body).Decode(&got)).To(Succeed())
			w.Write([]byte(`{"run_id":"r1","status":"unrepaired","error":true}`))
		}))
		DeferCleanup(server.Close)

		src := filepath.Join(dir, "div.go")
		Expect(os.WriteFile(src, []byte("func div(a, b int) int { return a / b }\n"), 0644)).To(Succeed())

		out, err := execute("run", "--file", src, "--args", "[1, 0]", "--server", server.URL, "--api-key", "k1")
		Expect(err).To(MatchError(errNotHealthy))
		Expect(out).To(ContainSubstring(`"unrepaired"`))
		Expect(got["arguments"]).To(Equal([]any{1.0, 0.0}))
	})
})
