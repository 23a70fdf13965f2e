// Command prove drives the Prover side of the pipeline: `--mode prove`
// runs the session and persists (Attestation, Secrets); `--mode present`
// derives a Presentation from a previously persisted scope; `--mode
// prove-to-present` does both in one run. See SPEC_FULL.md §6 for the
// full command surface and exit code table.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/zkp2p/tlsn-attest/config"
	"github.com/zkp2p/tlsn-attest/pipeline"
	"github.com/zkp2p/tlsn-attest/presenter"
	"github.com/zkp2p/tlsn-attest/providers"
	"github.com/zkp2p/tlsn-attest/shared"
	"go.uber.org/zap"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	shared.ClearLastError()

	fs := flag.NewFlagSet("prove", flag.ContinueOnError)
	modeStr := fs.String("mode", "", "prove | present | prove-to-present")
	providerStr := fs.String("provider", "", "provider id (e.g. wise, paypal)")
	transactionID := fs.String("transaction-id", "", "provider transaction id path parameter")
	profileID := fs.String("profile-id", "", "provider profile id path parameter")
	cookie := fs.String("cookie", "", "session cookie credential")
	accessToken := fs.String("access-token", "", "bearer access token credential")
	reveal := fs.String("reveal", "", "comma-separated field names to disclose; defaults to every disclosable field")
	scope := fs.String("scope", "", "artifact scope name; defaults to --provider")
	fs.SetOutput(os.Stderr)

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *modeStr == "" || *providerStr == "" {
		fmt.Fprintln(os.Stderr, "usage: prove --mode {prove|present|prove-to-present} --provider <id> [...]")
		return 1
	}

	mode, err := config.ParseMode(*modeStr)
	if err != nil {
		// An unrecognized --mode is a usage error (§8 scenario 2: exit 1),
		// distinct from a Config error discovered after flags parse
		// cleanly (§8 scenario 3: exit 2).
		shared.SetLastError(err)
		fmt.Fprintln(os.Stderr, err.Error())
		return 1
	}

	scopeName := *scope
	if scopeName == "" {
		scopeName = *providerStr
	}

	logger, err := shared.NewLoggerFromEnv("prove")
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logger:", err)
		return 1
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		return reportAndExit(logger, err)
	}

	profile, err := providers.Lookup(providers.ID(*providerStr))
	if err != nil {
		return reportAndExit(logger, err)
	}

	templateName, err := profile.DefaultRequestTemplateName()
	if err != nil {
		return reportAndExit(logger, err)
	}

	params := pipeline.RequestParams{
		TemplateName: templateName,
		Credentials: providers.Credentials{
			CookieStr:           *cookie,
			AuthorisationHeader: *accessToken,
		},
		PathParams: map[string]string{
			"transaction_id": *transactionID,
			"profile_id":     *profileID,
		},
	}

	whitelist := resolveWhitelist(*reveal, profile)
	ctx := context.Background()

	switch mode {
	case config.ModeProve:
		att, secrets, err := pipeline.Prove(ctx, cfg, logger.Logger, profile, params)
		if err != nil {
			return reportAndExit(logger, err)
		}
		if err := pipeline.WriteProve(cfg, scopeName, att, secrets); err != nil {
			return reportAndExit(logger, err)
		}
	case config.ModePresent:
		if _, err := pipeline.Present(cfg, scopeName, profile, whitelist); err != nil {
			return reportAndExit(logger, err)
		}
	case config.ModeProveToPresent:
		if _, err := pipeline.ProveToPresent(ctx, cfg, logger.Logger, profile, params, scopeName, whitelist); err != nil {
			return reportAndExit(logger, err)
		}
	default:
		return 1
	}

	return 0
}

// resolveWhitelist implements the CLI's default-to-everything-disclosable
// policy: an empty --reveal means "present mode should disclose every
// field the provider profile allows", matching §8 scenario 1's happy
// path, which names no explicit whitelist yet expects the full
// disclosable set revealed. A non-empty --reveal is taken verbatim,
// including a name outside the disclosable set (§8 scenario 5's
// credential-leak attempt), so the policy violation surfaces from
// presenter.Present rather than being silently filtered here.
func resolveWhitelist(reveal string, profile providers.Profile) presenter.Whitelist {
	w := presenter.Whitelist{}
	if reveal == "" {
		for field := range profile.DisclosableFields {
			w[field] = true
		}
		return w
	}
	for _, name := range strings.Split(reveal, ",") {
		name = strings.TrimSpace(name)
		if name != "" {
			w[name] = true
		}
	}
	return w
}

func reportAndExit(logger *shared.Logger, err error) int {
	shared.SetLastError(err)
	var ae *shared.AttestError
	if errors.As(err, &ae) {
		logger.Logger.Error("run failed", zap.String("code", string(ae.Code)), zap.String("subtype", ae.Subtype))
		fmt.Fprintln(os.Stderr, ae.Error())
		return ae.Code.ExitCode()
	}
	fmt.Fprintln(os.Stderr, err.Error())
	return 1
}
