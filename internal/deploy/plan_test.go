package deploy_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"skyctl/internal/deploy"
	skyerr "skyctl/internal/errors"
	"skyctl/internal/manifest"
)

const tid = "01006A800016E000"

var _ = Describe("NewPlan", func() {
	It("resolves the default plugin install", func() {
		p, err := deploy.NewPlan(deploy.Request{TitleID: tid, ArtifactName: "libplugin.nro"})
		Expect(err).NotTo(HaveOccurred())

		root := "/atmosphere/contents/" + tid
		Expect(p.BaseDir).To(Equal(root))
		Expect(p.Install.File).To(Equal(root + "/romfs/skyline/plugins/libplugin.nro"))
		Expect(p.Dirs).To(Equal([]string{
			root,
			root + "/exefs",
			root + "/romfs",
			root + "/romfs/skyline",
			root + "/romfs/skyline/plugins",
		}))
		Expect(p.RuntimeModule).To(Equal("subsdk9"))
		Expect(p.Steps).To(Equal(deploy.Steps))
	})

	It("creates only the title directories for an sd install", func() {
		p, err := deploy.NewPlan(deploy.Request{TitleID: tid, InstallPath: "sd:/switch/x.nro"})
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Install.File).To(Equal("/switch/x.nro"))
		Expect(p.Dirs).To(Equal([]string{
			"/atmosphere/contents/" + tid,
			"/atmosphere/contents/" + tid + "/exefs",
			"/switch",
		}))
	})

	DescribeTable("rejects bad requests before any network I/O",
		func(req deploy.Request, match func(error) bool) {
			_, err := deploy.NewPlan(req)
			Expect(err).To(HaveOccurred())
			Expect(match(err)).To(BeTrue(), "unexpected error %v", err)
		},
		Entry("missing title id", deploy.Request{ArtifactName: "a.nro"},
			func(err error) bool { return skyerr.Is(err, skyerr.ErrNoTitleID) }),
		Entry("malformed title id", deploy.Request{TitleID: "xyz", ArtifactName: "a.nro"},
			func(err error) bool { return skyerr.Is(err, skyerr.ErrBadTitleID) }),
		Entry("unknown prefix", deploy.Request{TitleID: tid, InstallPath: "foo:/bar", ArtifactName: "a.nro"},
			func(err error) bool {
				var pe *skyerr.PathError
				return skyerr.As(err, &pe)
			}),
		Entry("no file name", deploy.Request{TitleID: tid},
			func(err error) bool { return skyerr.Classify(err) == skyerr.CategoryUserInput }),
	)
})

var _ = Describe("RequestFromManifest", func() {
	It("fills unset fields from the manifest", func() {
		m := &manifest.Manifest{
			Name:          "plugin",
			TitleID:       tid,
			RuntimeModule: "subsdk8",
			CustomNpdm:    "npdm/main.npdm",
			Dependencies:  []manifest.Dependency{{Name: "libnro_hook.nro", URL: "https://example.com/hook.nro"}},
			Dir:           "/work/plugin",
		}
		req := deploy.RequestFromManifest(deploy.Request{TitleID: "0100000000010000"}, m)

		Expect(req.TitleID).To(Equal("0100000000010000"))
		Expect(req.RuntimeModule).To(Equal("subsdk8"))
		Expect(req.CustomNpdm).To(Equal("/work/plugin/npdm/main.npdm"))
		Expect(req.ArtifactName).To(Equal("libplugin.nro"))
		Expect(req.Dependencies).To(HaveLen(1))
	})

	It("tolerates a missing manifest", func() {
		req := deploy.RequestFromManifest(deploy.Request{TitleID: tid}, nil)
		Expect(req).To(Equal(deploy.Request{TitleID: tid}))
	})
})
