package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine"
	"github.com/Carmen-Shannon/oxy-cull/engine/camera"
	"github.com/Carmen-Shannon/oxy-cull/engine/config"
	"github.com/Carmen-Shannon/oxy-cull/engine/light"
	"github.com/Carmen-Shannon/oxy-cull/engine/loader"
	"github.com/Carmen-Shannon/oxy-cull/engine/primitive"
	"github.com/Carmen-Shannon/oxy-cull/engine/scene"
	"github.com/Carmen-Shannon/oxy-cull/engine/visibility"
	"github.com/go-gl/mathgl/mgl32"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const (
	gridSpacing   float32 = 20
	gridBoxExtent float32 = 5
	orbitStep     float32 = 0.02
)

var errBadFlag = errors.New("invalid flag")

type benchOptions struct {
	frames   int
	grid     int
	gltf     string
	config   string
	logLevel string
	lights   []string
	workers  int
}

func newRootCommand() *cobra.Command {
	opts := benchOptions{}
	cmd := &cobra.Command{
		Use:   "cullbench",
		Short: "Run visibility and shadow setup over a synthetic or glTF scene",
		Long: `Builds a scene from a grid of boxes or a glTF file, orbits a camera around it
and renders frames, logging visibility and shadow statistics.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(opts.logLevel)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(opts)
		},
	}

	f := cmd.Flags()
	f.IntVar(&opts.frames, "frames", 120, "number of frames to render")
	f.IntVar(&opts.grid, "grid", 16, "render a synthetic grid of N*N*N boxes")
	f.StringVar(&opts.gltf, "gltf", "", "render the meshes of a .gltf or .glb file instead of the grid")
	f.StringVar(&opts.config, "config", "", "JSON file overriding the default configuration")
	f.StringVar(&opts.logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	f.StringSliceVar(&opts.lights, "lights", []string{"directional"}, "lights to add: directional, point, spot")
	f.IntVar(&opts.workers, "workers", 0, "worker count; 0 keeps the configured value")
	return cmd
}

func setupLogging(level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("--log-level: %w", err)
	}
	log.SetLevel(lvl)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	return nil
}

func (o benchOptions) validate() error {
	if o.frames <= 0 {
		return fmt.Errorf("--frames must be positive: %w", errBadFlag)
	}
	if o.gltf == "" && o.grid <= 0 {
		return fmt.Errorf("--grid must be positive: %w", errBadFlag)
	}
	if o.workers < 0 {
		return fmt.Errorf("--workers must not be negative: %w", errBadFlag)
	}
	return nil
}

func (o benchOptions) loadConfig() (config.Config, error) {
	if o.config == "" {
		return config.Default(), nil
	}
	return config.Load(o.config)
}

func runBench(o benchOptions) error {
	if err := o.validate(); err != nil {
		return err
	}
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	lights, err := buildLights(o.lights)
	if err != nil {
		return err
	}

	var proxies []primitive.Proxy
	if o.gltf != "" {
		if proxies, err = loader.LoadGLTF(o.gltf); err != nil {
			return err
		}
	} else {
		proxies = buildGrid(o.grid)
	}
	s, center, radius := buildScene(proxies, lights)

	engOpts := []engine.EngineBuilderOption{engine.WithConfig(cfg), engine.WithScene(s)}
	if o.workers > 0 {
		engOpts = append(engOpts, engine.WithWorkers(o.workers))
	}
	eng := engine.NewEngine(engOpts...)
	defer eng.Close()
	eng.EnableProfiler()

	ctrl := camera.NewOrbitController(
		camera.WithTarget(center.X(), center.Y(), center.Z()),
		camera.WithRadius(radius*1.5),
		camera.WithRadiusBounds(1, radius*10),
	)
	cam := camera.NewCamera(
		camera.WithController(ctrl),
		camera.WithClipPlanes(1, radius*6),
		camera.WithViewState(eng.ViewState(0)),
	)

	logger := log.WithField("component", "cullbench")
	logger.WithFields(log.Fields{
		"primitives": s.NumPrimitives(),
		"lights":     len(lights),
		"frames":     o.frames,
	}).Info("scene ready")

	var visible, shadows int
	for i := 0; i < o.frames; i++ {
		ctrl.Orbit(orbitStep, 0)
		cam.Update()
		res, err := eng.RenderFrame([]*visibility.View{cam.View(eng.Now())})
		if err != nil {
			return err
		}
		sample := res.Sample()
		visible += sample.Visible
		shadows += sample.ShadowsCreated
	}

	report := eng.Profiler().Last()
	logger.WithFields(log.Fields{
		"avg_visible": float64(visible) / float64(o.frames),
		"avg_shadows": float64(shadows) / float64(o.frames),
		"fps":         report.FPS,
		"heap_mb":     report.HeapMB,
	}).Info("benchmark complete")
	return nil
}

// buildGrid lays out n*n*n boxes centered on the origin. Every fourth box is movable; the
// rest are static and carry static lighting.
func buildGrid(n int) []primitive.Proxy {
	half := float32(n-1) * gridSpacing / 2
	out := make([]primitive.Proxy, 0, n*n*n)
	for x := 0; x < n; x++ {
		for y := 0; y < n; y++ {
			for z := 0; z < n; z++ {
				i := len(out)
				mobility, flags := common.MobilityStatic, primitive.DefaultFlags|primitive.FlagHasStaticLighting
				if i%4 == 0 {
					mobility, flags = common.MobilityMovable, primitive.DefaultFlags
				}
				out = append(out, primitive.NewPrimitive(
					primitive.WithName(fmt.Sprintf("box_%d_%d_%d", x, y, z)),
					primitive.WithBox(mgl32.Vec3{}, mgl32.Vec3{gridBoxExtent, gridBoxExtent, gridBoxExtent}),
					primitive.WithPosition(float32(x)*gridSpacing-half, float32(y)*gridSpacing-half, float32(z)*gridSpacing-half),
					primitive.WithMobility(mobility),
					primitive.WithFlags(flags),
					primitive.WithDrawBatches(primitive.DrawBatch{
						CastShadow: true, ReceiveShadow: true, UseForMaterial: true, UseAsOccluder: true,
					}),
				))
			}
		}
	}
	return out
}

// buildScene registers the proxies and lights in a scene sized to fit them, and returns the
// scene with the center and radius of the bounds of its primitives.
func buildScene(proxies []primitive.Proxy, lights []light.Light) (scene.Scene, mgl32.Vec3, float32) {
	bounds := proxies[0].Bounds()
	for _, p := range proxies[1:] {
		bounds = bounds.Union(p.Bounds())
	}
	box := bounds.Box()
	radius := max(bounds.SphereRadius, 1)

	s := scene.NewScene("cullbench", scene.WithWorldExtent(box.Origin, radius*2))
	for _, p := range proxies {
		s.AddPrimitive(p)
	}
	for _, l := range lights {
		if l.Type() != light.LightTypeDirectional {
			l.SetPosition(box.Origin.Add(mgl32.Vec3{0, box.Extent.Y() + radius*0.25, 0}))
			l.SetRange(radius * 2)
		}
		s.AddLight(l)
	}
	return s, box.Origin, radius
}

func buildLights(kinds []string) ([]light.Light, error) {
	out := make([]light.Light, 0, len(kinds))
	for _, k := range kinds {
		switch strings.ToLower(strings.TrimSpace(k)) {
		case "directional":
			out = append(out, light.NewLight(light.LightTypeDirectional,
				light.WithMobility(common.MobilityStationary),
				light.WithDirection(-0.3, -1, -0.2),
			))
		case "point":
			out = append(out, light.NewLight(light.LightTypePoint,
				light.WithMobility(common.MobilityStationary),
				light.WithOnePassPointShadows(true),
			))
		case "spot":
			out = append(out, light.NewLight(light.LightTypeSpot,
				light.WithMobility(common.MobilityStatic),
				light.WithDirection(0, -1, 0),
				light.WithSpotCone(30, 45),
			))
		default:
			return nil, fmt.Errorf("--lights: unknown light %q: %w", k, errBadFlag)
		}
	}
	return out, nil
}
