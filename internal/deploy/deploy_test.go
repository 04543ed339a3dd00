package deploy_test

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"skyctl/internal/deploy"
	skyerr "skyctl/internal/errors"
	"skyctl/internal/fetch"
	"skyctl/internal/ftp"
	"skyctl/internal/ftp/ftptest"
	"skyctl/internal/layout"
	"skyctl/internal/manifest"
	"skyctl/internal/metrics"
	"skyctl/internal/npdm"
	"skyctl/internal/transport"
	"skyctl/util"
)

const runtimeURL = "https://example.com/skyline.zip"

// fakeFetcher serves canned payloads and records every request.
type fakeFetcher struct {
	mu       sync.Mutex
	payloads map[string][]byte
	failures map[string]error
	requests []string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{payloads: map[string][]byte{}, failures: map[string]error{}}
}

func (f *fakeFetcher) Fetch(_ context.Context, src string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, src)
	if err := f.failures[src]; err != nil {
		return nil, err
	}
	data, ok := f.payloads[src]
	if !ok {
		return nil, fmt.Errorf("fetch %s: 404 Not Found", src)
	}
	return data, nil
}

func (f *fakeFetcher) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func runtimeArchive(module []byte) []byte {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range map[string][]byte{
		"exefs/subsdk9":                  module,
		"romfs/skyline/plugins/.gitkeep": nil,
	} {
		w, err := zw.Create(name)
		Expect(err).NotTo(HaveOccurred())
		_, err = w.Write(data)
		Expect(err).NotTo(HaveOccurred())
	}
	Expect(zw.Close()).To(Succeed())
	return buf.Bytes()
}

func quietLogger() *util.Logger {
	l := util.NewLogger(3)
	l.SetOutput(io.Discard)
	return l
}

var _ = Describe("Orchestrator", func() {
	var (
		srv      *ftptest.Server
		fetcher  *fakeFetcher
		stats    *metrics.Collector
		orch     *deploy.Orchestrator
		artifact []byte
		module   []byte
		ctx      context.Context
		cancel   context.CancelFunc
		root     string
	)

	plan := func(req deploy.Request) *deploy.Plan {
		if req.TitleID == "" {
			req.TitleID = tid
		}
		if req.ArtifactName == "" {
			req.ArtifactName = "libplugin.nro"
		}
		if req.RuntimeURL == "" {
			req.RuntimeURL = runtimeURL
		}
		p, err := deploy.NewPlan(req)
		Expect(err).NotTo(HaveOccurred())
		return p
	}

	seedInstalled := func() {
		srv.PutFile(layout.RuntimePath(tid, ""), []byte("runtime"))
		srv.PutFile(layout.NpdmPath(tid), npdm.Template())
	}

	BeforeEach(func() {
		srv = ftptest.NewServer()
		fetcher = newFakeFetcher()
		stats = metrics.New("run-under-test")
		module = []byte("SUBSDK9 runtime module")
		fetcher.payloads[runtimeURL] = runtimeArchive(module)
		artifact = []byte{0x00, 0x01, 0x02, 0x03}
		root = "/atmosphere/contents/" + tid

		orch = &deploy.Orchestrator{
			Dialer:  &transport.TCPDialer{Timeout: time.Second},
			Addr:    srv.Addr,
			FTP:     ftp.Options{Timeout: 2 * time.Second},
			Fetcher: fetcher,
			Logger:  quietLogger(),
			Metrics: stats,
		}
		ctx, cancel = context.WithTimeout(context.Background(), 20*time.Second)
	})

	AfterEach(func() {
		cancel()
		srv.Close()
	})

	Context("on a console that has nothing installed", func() {
		It("installs the runtime, the npdm and the plugin", func() {
			res, err := orch.Deploy(ctx, plan(deploy.Request{}), artifact)
			Expect(err).NotTo(HaveOccurred())

			Expect(res.RunID).To(Equal("run-under-test"))
			Expect(res.InstallPath).To(Equal(root + "/romfs/skyline/plugins/libplugin.nro"))
			Expect(res.Installed).To(Equal([]string{"runtime", "npdm"}))
			Expect(res.Warnings).To(Equal([]string{deploy.WarnMinimalNpdm}))

			data, ok := srv.File(root + "/exefs/subsdk9")
			Expect(ok).To(BeTrue())
			Expect(data).To(Equal(module))

			desc, ok := srv.File(root + "/exefs/main.npdm")
			Expect(ok).To(BeTrue())
			Expect(binary.LittleEndian.Uint64(desc[0x340:0x348])).To(Equal(uint64(0x01006A800016E000)))

			data, ok = srv.File(res.InstallPath)
			Expect(ok).To(BeTrue())
			Expect(data).To(Equal(artifact))

			Expect(srv.HasDir(root + "/romfs/skyline/plugins")).To(BeTrue())
			Expect(stats.FilesUploaded()).To(Equal(int64(3)))
			Expect(stats.Remediations()).To(Equal(int64(2)))
		})

		It("creates the directory chain outermost first", func() {
			_, err := orch.Deploy(ctx, plan(deploy.Request{}), artifact)
			Expect(err).NotTo(HaveOccurred())

			var mkds []string
			for _, c := range srv.Commands() {
				if len(c) > 4 && c[:4] == "MKD " {
					mkds = append(mkds, c[4:])
				}
			}
			Expect(mkds).To(Equal([]string{
				root,
				root + "/exefs",
				root + "/romfs",
				root + "/romfs/skyline",
				root + "/romfs/skyline/plugins",
			}))
		})

		It("logs in anonymously over a single control connection", func() {
			_, err := orch.Deploy(ctx, plan(deploy.Request{}), artifact)
			Expect(err).NotTo(HaveOccurred())

			cmds := srv.Commands()
			Expect(cmds[0]).To(Equal("USER anonymous"))
			Expect(cmds[1]).To(Equal("PASS anonymous"))
			Expect(srv.Count("USER")).To(Equal(1))
		})
	})

	Context("on a console that is already provisioned", func() {
		BeforeEach(seedInstalled)

		It("uploads only the artifact", func() {
			res, err := orch.Deploy(ctx, plan(deploy.Request{}), artifact)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Installed).To(BeEmpty())
			Expect(srv.Count("STOR")).To(Equal(1))
			Expect(fetcher.Requests()).To(BeEmpty())
		})

		It("keeps going when directories cannot be created", func() {
			srv.Fail("MKD", 550, "read-only file system")
			_, err := orch.Deploy(ctx, plan(deploy.Request{}), artifact)
			Expect(err).NotTo(HaveOccurred())
		})

		It("warns about a legacy runtime install", func() {
			srv.PutFile(root+"/exefs/subsdk1", []byte("old runtime"))
			res, err := orch.Deploy(ctx, plan(deploy.Request{}), artifact)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Warnings).To(ContainElement(ContainSubstring("old install")))
		})

		It("honours an sd:/ install path", func() {
			res, err := orch.Deploy(ctx, plan(deploy.Request{InstallPath: "sd:/switch/plugins/"}), artifact)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.InstallPath).To(Equal("/switch/plugins/libplugin.nro"))
			_, ok := srv.File("/switch/plugins/libplugin.nro")
			Expect(ok).To(BeTrue())
		})

		It("reports progress for each stage", func() {
			var steps []deploy.Step
			orch.Progress = func(step deploy.Step, _ string) { steps = append(steps, step) }
			_, err := orch.Deploy(ctx, plan(deploy.Request{}), artifact)
			Expect(err).NotTo(HaveOccurred())
			Expect(steps).To(ContainElements(deploy.StepConnect, deploy.StepEnsureBaseDirs, deploy.StepUpload))
		})
	})

	Context("with a custom runtime module slot", func() {
		It("probes and installs into that slot", func() {
			srv.PutFile(layout.NpdmPath(tid), npdm.Template())
			_, err := orch.Deploy(ctx, plan(deploy.Request{RuntimeModule: "subsdk8"}), artifact)
			Expect(err).NotTo(HaveOccurred())

			data, ok := srv.File(root + "/exefs/subsdk8")
			Expect(ok).To(BeTrue())
			Expect(data).To(Equal(module))
			_, ok = srv.File(root + "/exefs/subsdk9")
			Expect(ok).To(BeFalse())
		})
	})

	Context("with a custom npdm", func() {
		It("uploads the local descriptor instead of generating one", func() {
			srv.PutFile(layout.RuntimePath(tid, ""), []byte("runtime"))
			custom, err := npdm.Patch(npdm.Template(), 0x0100000000010000)
			Expect(err).NotTo(HaveOccurred())
			p := filepath.Join(GinkgoT().TempDir(), "main.npdm")
			Expect(os.WriteFile(p, custom, 0o644)).To(Succeed())

			res, err := orch.Deploy(ctx, plan(deploy.Request{CustomNpdm: p}), artifact)
			Expect(err).NotTo(HaveOccurred())

			desc, _ := srv.File(layout.NpdmPath(tid))
			Expect(desc).To(Equal(custom))
			Expect(res.Warnings).To(ContainElement(ContainSubstring("0100000000010000")))
			Expect(res.Warnings).NotTo(ContainElement(deploy.WarnMinimalNpdm))
		})

		It("fails the descriptor step when the file is missing", func() {
			srv.PutFile(layout.RuntimePath(tid, ""), []byte("runtime"))
			_, err := orch.Deploy(ctx, plan(deploy.Request{CustomNpdm: "/nonexistent/main.npdm"}), artifact)
			Expect(skyerr.StepOf(err)).To(Equal(string(deploy.StepEnsureManifestDescriptor)))
			Expect(skyerr.Classify(err)).To(Equal(skyerr.CategoryRemediation))
		})
	})

	Context("with dependencies", func() {
		deps := []manifest.Dependency{
			{Name: "libnro_hook.nro", URL: "https://example.com/hook.nro"},
			{Name: "libarc.nro", URL: "https://example.com/arc.nro"},
			{Name: "libpresent.nro", URL: "https://example.com/present.nro"},
		}

		BeforeEach(func() {
			seedInstalled()
			srv.PutFile(layout.PluginPath(tid, "libpresent.nro"), []byte("already here"))
			fetcher.payloads["https://example.com/hook.nro"] = []byte("hook")
			fetcher.payloads["https://example.com/arc.nro"] = []byte("arc")
		})

		It("fetches and installs only the missing ones, in declared order", func() {
			res, err := orch.Deploy(ctx, plan(deploy.Request{Dependencies: deps}), artifact)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Installed).To(Equal([]string{"libnro_hook.nro", "libarc.nro"}))
			Expect(fetcher.Requests()).To(ConsistOf("https://example.com/hook.nro", "https://example.com/arc.nro"))

			data, _ := srv.File(layout.PluginPath(tid, "libarc.nro"))
			Expect(data).To(Equal([]byte("arc")))

			var stors []string
			for _, c := range srv.Commands() {
				if len(c) > 5 && c[:5] == "STOR " {
					stors = append(stors, c[5:])
				}
			}
			Expect(stors).To(Equal([]string{
				layout.PluginPath(tid, "libnro_hook.nro"),
				layout.PluginPath(tid, "libarc.nro"),
				root + "/romfs/skyline/plugins/libplugin.nro",
			}))
		})

		It("aborts before uploading when a download fails", func() {
			fetcher.failures["https://example.com/arc.nro"] = fmt.Errorf("connection reset")
			_, err := orch.Deploy(ctx, plan(deploy.Request{Dependencies: deps}), artifact)

			Expect(skyerr.StepOf(err)).To(Equal(string(deploy.StepEnsureDependencies)))
			Expect(skyerr.Classify(err)).To(Equal(skyerr.CategoryRemediation))
			Expect(err.Error()).To(ContainSubstring("libarc.nro"))
			Expect(srv.Count("STOR")).To(Equal(0))
		})
	})

	Context("when a step fails", func() {
		It("names the connect step when nothing listens", func() {
			port, err := util.FindFreePort()
			Expect(err).NotTo(HaveOccurred())
			orch.Addr = util.FormatAddr("127.0.0.1", port)

			_, err = orch.Deploy(ctx, plan(deploy.Request{}), artifact)
			Expect(skyerr.StepOf(err)).To(Equal(string(deploy.StepConnect)))
			Expect(skyerr.ExitCode(err)).To(Equal(2))
			Expect(stats.ErrorCount()).To(Equal(int64(1)))
		})

		It("fails fast when the login is rejected", func() {
			srv.Fail("PASS", 530, "login incorrect")
			_, err := orch.Deploy(ctx, plan(deploy.Request{}), artifact)
			Expect(skyerr.StepOf(err)).To(Equal(string(deploy.StepConnect)))
			Expect(skyerr.StatusCode(err)).To(Equal(530))
			Expect(skyerr.Classify(err)).To(Equal(skyerr.CategoryTarget))
			Expect(srv.Count("PASS")).To(Equal(1))
			Expect(srv.Count("MKD")).To(Equal(0))
		})

		It("reports a runtime download failure as a remediation error", func() {
			delete(fetcher.payloads, runtimeURL)
			_, err := orch.Deploy(ctx, plan(deploy.Request{}), artifact)
			Expect(skyerr.StepOf(err)).To(Equal(string(deploy.StepEnsureRuntime)))
			Expect(skyerr.ExitCode(err)).To(Equal(6))
			Expect(srv.Count("STOR")).To(Equal(0))
		})

		It("reports a rejected upload with its status code", func() {
			seedInstalled()
			srv.Fail("STOR", 552, "disk full")
			_, err := orch.Deploy(ctx, plan(deploy.Request{}), artifact)
			Expect(skyerr.StepOf(err)).To(Equal(string(deploy.StepUpload)))
			Expect(skyerr.StatusCode(err)).To(Equal(552))

			var rop *skyerr.RemoteOpError
			Expect(skyerr.As(err, &rop)).To(BeTrue())
			Expect(rop.Op).To(Equal("transfer"))
		})

		It("stops when the context is cancelled", func() {
			cancel()
			_, err := orch.Deploy(ctx, plan(deploy.Request{}), artifact)
			Expect(err).To(HaveOccurred())
			Expect(skyerr.StepOf(err)).To(Equal(string(deploy.StepConnect)))
		})
	})

	Context("with the HTTP fetcher", func() {
		It("downloads the runtime archive over HTTP", func() {
			archive := runtimeArchive(module)
			hs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write(archive) //nolint:errcheck
			}))
			defer hs.Close()

			orch.Fetcher = fetch.NewHTTPFetcher(quietLogger(), fetch.Options{RetryMax: 1, RetryWaitMin: time.Millisecond, RetryWaitMax: 5 * time.Millisecond})
			srv.PutFile(layout.NpdmPath(tid), npdm.Template())

			_, err := orch.Deploy(ctx, plan(deploy.Request{RuntimeURL: hs.URL + "/skyline.zip"}), artifact)
			Expect(err).NotTo(HaveOccurred())
			data, _ := srv.File(layout.RuntimePath(tid, ""))
			Expect(data).To(Equal(module))
		})
	})
})
