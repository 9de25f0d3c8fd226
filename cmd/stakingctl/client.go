package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"cookledger/rpc"
)

const (
	rpcURLEnv   = "COOK_RPC_URL"
	rpcTokenEnv = "COOK_RPC_TOKEN"
)

var httpClient = &http.Client{Timeout: 15 * time.Second}

// apiError carries the problem body returned by the daemon.
type apiError struct {
	Status    int
	Message   string
	RequestID string
}

func (e *apiError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("%s (status %d, request %s)", e.Message, e.Status, e.RequestID)
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

type client struct {
	endpoint string
	token    string
}

type clientFlags struct {
	rpc  *string
	auth *string
}

func addClientFlags(flags *flag.FlagSet) clientFlags {
	return clientFlags{
		rpc:  flags.String("rpc", defaultEndpoint(), "Base URL of the stakingd API"),
		auth: flags.String("auth", os.Getenv(rpcTokenEnv), "Bearer token for write calls"),
	}
}

func (f clientFlags) client() *client {
	return &client{endpoint: strings.TrimRight(strings.TrimSpace(*f.rpc), "/"), token: strings.TrimSpace(*f.auth)}
}

func defaultEndpoint() string {
	if v := strings.TrimSpace(os.Getenv(rpcURLEnv)); v != "" {
		return v
	}
	return "http://127.0.0.1:8080"
}

func (c *client) get(path string, out interface{}) error {
	return c.do(http.MethodGet, path, nil, out)
}

func (c *client) post(path string, body, out interface{}) error {
	if c.token == "" {
		return fmt.Errorf("bearer token required; pass --auth or set %s", rpcTokenEnv)
	}
	return c.do(http.MethodPost, path, body, out)
}

func (c *client) do(method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, c.endpoint+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		var problem struct {
			Error     string `json:"error"`
			RequestID string `json:"requestId"`
		}
		if err := json.Unmarshal(data, &problem); err != nil || problem.Error == "" {
			problem.Error = strings.TrimSpace(string(data))
		}
		return &apiError{Status: resp.StatusCode, Message: problem.Error, RequestID: problem.RequestID}
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

func reportError(stderr io.Writer, err error) int {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		fmt.Fprintf(stderr, "Error: %s\n", apiErr.Error())
		return 2
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return 1
}

func parsePoolArg(raw string) (uint32, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid pool id %q", raw)
	}
	return uint32(id), nil
}

func runPools(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("pools", flag.ContinueOnError)
	flags.SetOutput(stderr)
	cf := addClientFlags(flags)
	if err := flags.Parse(args); err != nil {
		return 1
	}
	var pools []rpc.PoolResponse
	if err := cf.client().get("/pools", &pools); err != nil {
		return reportError(stderr, err)
	}
	if len(pools) == 0 {
		fmt.Fprintln(stdout, "No pools")
		return 0
	}
	for _, p := range pools {
		state := "active"
		if p.Paused {
			state = "paused"
		}
		fmt.Fprintf(stdout, "%3d  %-8s -> %-8s staked=%s rate=%s %s\n", p.ID, p.Token, p.RewardToken, p.TotalStaked, p.RewardRate, state)
	}
	return 0
}

func runPool(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("pool", flag.ContinueOnError)
	flags.SetOutput(stderr)
	cf := addClientFlags(flags)
	if err := flags.Parse(args); err != nil {
		return 1
	}
	if flags.NArg() != 1 {
		fmt.Fprintln(stderr, "Usage: stakingctl pool [--rpc URL] <pool-id>")
		return 1
	}
	id, err := parsePoolArg(flags.Arg(0))
	if err != nil {
		return reportError(stderr, err)
	}
	var pool rpc.PoolResponse
	if err := cf.client().get(fmt.Sprintf("/pools/%d", id), &pool); err != nil {
		return reportError(stderr, err)
	}
	fmt.Fprintf(stdout, "Pool %d (%s, %s)\n", pool.ID, pool.Token, pool.Kind)
	fmt.Fprintf(stdout, "  Reward token:   %s\n", pool.RewardToken)
	fmt.Fprintf(stdout, "  Reward rate:    %s\n", pool.RewardRate)
	fmt.Fprintf(stdout, "  Total staked:   %s\n", pool.TotalStaked)
	fmt.Fprintf(stdout, "  Total rewarded: %s\n", pool.TotalRewarded)
	fmt.Fprintf(stdout, "  Total vesting:  %s\n", pool.TotalVesting)
	fmt.Fprintf(stdout, "  Lockup:         %ds\n", pool.LockupSeconds)
	fmt.Fprintf(stdout, "  Vesting:        %ds (step %ds)\n", pool.VestingSeconds, pool.VestingStepSeconds)
	fmt.Fprintf(stdout, "  Users:          %d\n", pool.Users)
	fmt.Fprintf(stdout, "  Paused:         %t\n", pool.Paused)
	return 0
}

func runAccount(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("account", flag.ContinueOnError)
	flags.SetOutput(stderr)
	cf := addClientFlags(flags)
	if err := flags.Parse(args); err != nil {
		return 1
	}
	if flags.NArg() != 2 {
		fmt.Fprintln(stderr, "Usage: stakingctl account [--rpc URL] <pool-id> <address>")
		return 1
	}
	id, err := parsePoolArg(flags.Arg(0))
	if err != nil {
		return reportError(stderr, err)
	}
	var account rpc.AccountResponse
	path := fmt.Sprintf("/pools/%d/accounts/%s", id, url.PathEscape(strings.TrimSpace(flags.Arg(1))))
	if err := cf.client().get(path, &account); err != nil {
		return reportError(stderr, err)
	}
	printAccount(stdout, account)
	return 0
}

func printAccount(out io.Writer, a rpc.AccountResponse) {
	fmt.Fprintf(out, "Account %s in pool %d\n", a.Address, a.Pool)
	fmt.Fprintf(out, "  Staked:     %s\n", a.Staked)
	fmt.Fprintf(out, "  Unstakable: %s\n", a.Unstakable)
	fmt.Fprintf(out, "  Rewarded:   %s\n", a.Rewarded)
	fmt.Fprintf(out, "  Vesting:    %s\n", a.Vesting)
	fmt.Fprintf(out, "  Claimable:  %s\n", a.Claimable)
	fmt.Fprintf(out, "  Claimed:    %s\n", a.Claimed)
	if a.Referral != "" {
		fmt.Fprintf(out, "  Referral:   %s\n", a.Referral)
	}
}

func runApprove(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("approve", flag.ContinueOnError)
	flags.SetOutput(stderr)
	cf := addClientFlags(flags)
	spender := flags.String("spender", "", "Spender address (defaults to the staking module)")
	if err := flags.Parse(args); err != nil {
		return 1
	}
	if flags.NArg() != 2 {
		fmt.Fprintln(stderr, "Usage: stakingctl approve [--spender ADDR] <token> <amount>")
		return 1
	}
	body := map[string]string{"amount": flags.Arg(1)}
	if s := strings.TrimSpace(*spender); s != "" {
		body["spender"] = s
	}
	path := fmt.Sprintf("/tokens/%s/approve", url.PathEscape(strings.TrimSpace(flags.Arg(0))))
	if err := cf.client().post(path, body, nil); err != nil {
		return reportError(stderr, err)
	}
	fmt.Fprintln(stdout, "Approved")
	return 0
}

func runStake(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("stake", flag.ContinueOnError)
	flags.SetOutput(stderr)
	cf := addClientFlags(flags)
	referral := flags.String("referral", "", "Referrer address")
	if err := flags.Parse(args); err != nil {
		return 1
	}
	if flags.NArg() != 2 {
		fmt.Fprintln(stderr, "Usage: stakingctl stake [--referral ADDR] <pool-id> <amount>")
		return 1
	}
	id, err := parsePoolArg(flags.Arg(0))
	if err != nil {
		return reportError(stderr, err)
	}
	body := map[string]string{"amount": flags.Arg(1)}
	if r := strings.TrimSpace(*referral); r != "" {
		body["referral"] = r
	}
	return postAccount(cf.client(), fmt.Sprintf("/pools/%d/stake", id), body, stdout, stderr)
}

func runAmountCall(op string, args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet(op, flag.ContinueOnError)
	flags.SetOutput(stderr)
	cf := addClientFlags(flags)
	if err := flags.Parse(args); err != nil {
		return 1
	}
	if flags.NArg() != 2 {
		fmt.Fprintf(stderr, "Usage: stakingctl %s <pool-id> <amount>\n", op)
		return 1
	}
	id, err := parsePoolArg(flags.Arg(0))
	if err != nil {
		return reportError(stderr, err)
	}
	body := map[string]string{"amount": flags.Arg(1)}
	return postAccount(cf.client(), fmt.Sprintf("/pools/%d/%s", id, op), body, stdout, stderr)
}

func runExit(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("exit", flag.ContinueOnError)
	flags.SetOutput(stderr)
	cf := addClientFlags(flags)
	if err := flags.Parse(args); err != nil {
		return 1
	}
	if flags.NArg() != 1 {
		fmt.Fprintln(stderr, "Usage: stakingctl exit <pool-id>")
		return 1
	}
	id, err := parsePoolArg(flags.Arg(0))
	if err != nil {
		return reportError(stderr, err)
	}
	return postAccount(cf.client(), fmt.Sprintf("/pools/%d/exit", id), struct{}{}, stdout, stderr)
}

func runZap(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("zap", flag.ContinueOnError)
	flags.SetOutput(stderr)
	cf := addClientFlags(flags)
	target := flags.Uint("target", 0, "Pool receiving the restaked rewards")
	minOut := flags.String("min-out", "", "Minimum swap output when the reward token differs from the target pool token")
	if err := flags.Parse(args); err != nil {
		return 1
	}
	if flags.NArg() != 2 {
		fmt.Fprintln(stderr, "Usage: stakingctl zap --target ID [--min-out N] <pool-id> <amount>")
		return 1
	}
	id, err := parsePoolArg(flags.Arg(0))
	if err != nil {
		return reportError(stderr, err)
	}
	body := map[string]interface{}{"amount": flags.Arg(1), "targetPool": uint32(*target)}
	if m := strings.TrimSpace(*minOut); m != "" {
		body["minOut"] = m
	}
	return postAccount(cf.client(), fmt.Sprintf("/pools/%d/zap", id), body, stdout, stderr)
}

func postAccount(c *client, path string, body interface{}, stdout, stderr io.Writer) int {
	var account rpc.AccountResponse
	if err := c.post(path, body, &account); err != nil {
		return reportError(stderr, err)
	}
	printAccount(stdout, account)
	return 0
}
