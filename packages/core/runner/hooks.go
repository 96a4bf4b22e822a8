package runner

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/abdul-hamid-achik/restbench/packages/core/inherit"
	"github.com/abdul-hamid-achik/restbench/packages/expect"
	"github.com/abdul-hamid-achik/restbench/packages/ingest"
	"go.uber.org/zap"
)

// runPreScripts runs pre-request scripts outer to inner and stops at the
// first failure.
func (r *Runner) runPreScripts(ctx context.Context, req *inherit.EffectiveRequest) error {
	envv := scriptEnv(req, nil)
	for _, seg := range req.PreScripts {
		if err := r.runScript(ctx, seg, envv); err != nil {
			return fmt.Errorf("pre-script failed: %w", err)
		}
	}
	return nil
}

// runPostScripts runs post-response scripts inner to outer. Every script
// runs; each one becomes a TestResult.
func (r *Runner) runPostScripts(ctx context.Context, req *inherit.EffectiveRequest, resp *ingest.Response) []expect.TestResult {
	envv := scriptEnv(req, resp)
	var results []expect.TestResult
	for _, seg := range req.PostScripts {
		results = append(results, expect.Run("post-script "+seg.Source, func() error {
			return r.runScript(ctx, seg, envv)
		}))
	}
	return results
}

// runScript executes a single script segment with sh -c
func (r *Runner) runScript(ctx context.Context, seg inherit.ScriptSegment, envv []string) error {
	text := strings.TrimSpace(seg.Text)
	if text == "" {
		return nil
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", text)
	cmd.Dir = r.config.BaseDir
	cmd.Env = envv

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %v\nOutput: %s", seg.Source, err, strings.TrimSpace(string(output)))
	}
	if r.config.Verbose && len(output) > 0 {
		r.logger.Info("script output", zap.String("source", seg.Source), zap.ByteString("output", output))
	}
	return nil
}

// scriptEnv exposes the request, and the response when given, to scripts.
// Merged variables are exported as RB_VAR_<NAME>.
func scriptEnv(req *inherit.EffectiveRequest, resp *ingest.Response) []string {
	envv := append(os.Environ(),
		"RB_REQUEST_NAME="+req.Name,
		"RB_REQUEST_METHOD="+req.Method,
		"RB_REQUEST_URL="+req.URL,
	)
	for _, v := range req.Variables {
		envv = append(envv, "RB_VAR_"+envName(v.Key)+"="+v.Value)
	}
	if resp != nil {
		envv = append(envv,
			"RB_STATUS="+strconv.Itoa(resp.StatusCode),
			"RB_CONTENT_TYPE="+resp.ContentType,
			"RB_DURATION_MS="+strconv.FormatInt(resp.DurationMs(), 10),
		)
		switch resp.BodyKind {
		case ingest.BodyFile:
			envv = append(envv, "RB_BODY_FILE="+resp.FilePath)
		case ingest.BodyInline:
			envv = append(envv, "RB_BODY="+resp.Body)
		}
	}
	return envv
}

func envName(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, key)
}
