// Package nodeclient is the agent's only window onto the trusted chain
// node: head polling, rights queries, operation forging/preapply, block
// preapply/forging, and injection. spec.md §6 treats the node RPC
// transport as an external collaborator consumed through a narrow
// interface; NodeClient is that interface.
package nodeclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// NodeClient is the RPC surface spec.md §6 lists. Chain-scoped methods take
// the chain name ("main"), and the block helpers also take a block
// reference ("head" or a specific hash), the way the node's path segments
// expect; the injection methods take neither.
type NodeClient interface {
	ChainID(ctx context.Context, chain string) (string, error)
	Head(ctx context.Context, chain string) (*Head, error)
	EndorsingRights(ctx context.Context, chain, block string, level int64, delegate string) ([]Right, error)
	BakingRights(ctx context.Context, chain, block string, level int64, delegate string) ([]Right, error)
	ForgeOperation(ctx context.Context, chain, block string, op OperationSkeleton) (string, error)
	PreapplyOperations(ctx context.Context, chain, block string, ops []SignedOperation) ([]PreappliedOperation, error)
	PreapplyBlock(ctx context.Context, chain, block string, shell ShellHeader, timestamp time.Time) (*PreapplyBlockResult, error)
	ForgeBlockHeader(ctx context.Context, chain, block string, shell ShellHeader) (string, error)
	InjectOperation(ctx context.Context, hex string) (string, error)
	InjectBlock(ctx context.Context, chainID, hex string) (string, error)
	PendingOperations(ctx context.Context, chain string) (*MempoolPool, error)
}

// HTTPNodeClient is the production NodeClient, a thin net/http wrapper
// around the node's JSON RPC surface.
type HTTPNodeClient struct {
	baseURL   string
	authToken string
	hc        *http.Client
}

// NewHTTPNodeClient builds a client against baseURL. If tlsCfg is non-nil
// the client dials with it (mTLS to the node); authToken, if non-empty,
// is sent as a bearer token on every request.
func NewHTTPNodeClient(baseURL, authToken string, tlsCfg *tls.Config) *HTTPNodeClient {
	transport := &http.Transport{TLSClientConfig: tlsCfg}
	return &HTTPNodeClient{
		baseURL:   baseURL,
		authToken: authToken,
		hc:        &http.Client{Transport: transport, Timeout: 30 * time.Second},
	}
}

func (c *HTTPNodeClient) ChainID(ctx context.Context, chain string) (string, error) {
	var id string
	err := c.getJSON(ctx, fmt.Sprintf("/chains/%s/chain_id", chain), &id)
	return id, err
}

func (c *HTTPNodeClient) Head(ctx context.Context, chain string) (*Head, error) {
	var h Head
	if err := c.getJSON(ctx, fmt.Sprintf("/chains/%s/blocks/head/header", chain), &h); err != nil {
		return nil, err
	}
	return &h, nil
}

func (c *HTTPNodeClient) EndorsingRights(ctx context.Context, chain, block string, level int64, delegate string) ([]Right, error) {
	path := fmt.Sprintf("/chains/%s/blocks/%s/helpers/endorsing_rights?%s", chain, block, rightsQuery(level, delegate))
	var rights []Right
	if err := c.getJSON(ctx, path, &rights); err != nil {
		return nil, err
	}
	return rights, nil
}

func (c *HTTPNodeClient) BakingRights(ctx context.Context, chain, block string, level int64, delegate string) ([]Right, error) {
	path := fmt.Sprintf("/chains/%s/blocks/%s/helpers/baking_rights?%s", chain, block, rightsQuery(level, delegate))
	var rights []Right
	if err := c.getJSON(ctx, path, &rights); err != nil {
		return nil, err
	}
	return rights, nil
}

func rightsQuery(level int64, delegate string) string {
	v := url.Values{}
	v.Set("level", strconv.FormatInt(level, 10))
	v.Set("delegate", delegate)
	return v.Encode()
}

func (c *HTTPNodeClient) ForgeOperation(ctx context.Context, chain, block string, op OperationSkeleton) (string, error) {
	path := fmt.Sprintf("/chains/%s/blocks/%s/helpers/forge/operations", chain, block)
	var hex string
	if err := c.postJSON(ctx, path, op, &hex); err != nil {
		return "", err
	}
	return hex, nil
}

func (c *HTTPNodeClient) PreapplyOperations(ctx context.Context, chain, block string, ops []SignedOperation) ([]PreappliedOperation, error) {
	path := fmt.Sprintf("/chains/%s/blocks/%s/helpers/preapply/operations", chain, block)
	var results []PreappliedOperation
	if err := c.postJSON(ctx, path, ops, &results); err != nil {
		return nil, err
	}
	return results, nil
}

func (c *HTTPNodeClient) PreapplyBlock(ctx context.Context, chain, block string, shell ShellHeader, timestamp time.Time) (*PreapplyBlockResult, error) {
	v := url.Values{}
	v.Set("sort", "true")
	v.Set("timestamp", timestamp.UTC().Format(time.RFC3339))
	path := fmt.Sprintf("/chains/%s/blocks/%s/helpers/preapply/block?%s", chain, block, v.Encode())
	var result PreapplyBlockResult
	if err := c.postJSON(ctx, path, shell, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *HTTPNodeClient) ForgeBlockHeader(ctx context.Context, chain, block string, shell ShellHeader) (string, error) {
	path := fmt.Sprintf("/chains/%s/blocks/%s/helpers/forge_block_header", chain, block)
	var out struct {
		Block string `json:"block"`
	}
	if err := c.postJSON(ctx, path, shell, &out); err != nil {
		return "", err
	}
	return out.Block, nil
}

func (c *HTTPNodeClient) InjectOperation(ctx context.Context, hex string) (string, error) {
	var opHash string
	if err := c.postJSON(ctx, "/injection/operation", hex, &opHash); err != nil {
		return "", err
	}
	return opHash, nil
}

func (c *HTTPNodeClient) InjectBlock(ctx context.Context, chainID, hex string) (string, error) {
	v := url.Values{}
	v.Set("chain", chainID)
	path := "/injection/block?" + v.Encode()
	var blockHash string
	if err := c.postJSON(ctx, path, hex, &blockHash); err != nil {
		return "", err
	}
	return blockHash, nil
}

func (c *HTTPNodeClient) PendingOperations(ctx context.Context, chain string) (*MempoolPool, error) {
	path := fmt.Sprintf("/chains/%s/mempool/pending_operations", chain)
	var pool MempoolPool
	if err := c.getJSON(ctx, path, &pool); err != nil {
		return nil, err
	}
	return &pool, nil
}

func (c *HTTPNodeClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return errors.Wrapf(err, "build request %s", path)
	}
	return c.do(req, path, out)
}

func (c *HTTPNodeClient) postJSON(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return errors.Wrapf(err, "encode request body for %s", path)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return errors.Wrapf(err, "build request %s", path)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, path, out)
}

func (c *HTTPNodeClient) do(req *http.Request, path string, out any) error {
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return errors.Wrapf(err, "request %s", path)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "read response body for %s", path)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newRPCError(path, resp.StatusCode, respBody)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return errors.Wrapf(err, "decode response body for %s", path)
	}
	return nil
}
