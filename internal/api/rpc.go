package api

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
)

// rpcRequest is a JSON-RPC 2.0 call envelope
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type largestAccountsResponse struct {
	Result struct {
		Value []struct {
			Address string `json:"address"`
			Amount  string `json:"amount"`
		} `json:"value"`
	} `json:"result"`
}

type accountInfoResponse struct {
	Result struct {
		Value struct {
			Data struct {
				Parsed struct {
					Info struct {
						Owner string `json:"owner"`
					} `json:"info"`
				} `json:"parsed"`
			} `json:"data"`
		} `json:"value"`
	} `json:"result"`
}

// GetOwner resolves a token's current owner over blockchain RPC: first the
// mint's largest token account, then the parsed owner of that account. Used
// as a fallback when marketplace metadata does not carry an owner. The call
// goes through the failover endpoint list under the usual rate discipline.
func (f *Fetcher) GetOwner(ctx context.Context, mint string) (string, error) {
	body, err := f.rpc.Call(ctx, rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "getTokenLargestAccounts",
		Params:  []interface{}{mint},
	})
	if err != nil {
		return "", errors.Wrap(err, "token largest accounts")
	}

	var accounts largestAccountsResponse
	if err := json.Unmarshal(body, &accounts); err != nil {
		return "", errors.Wrap(err, "decode largest accounts")
	}
	if len(accounts.Result.Value) == 0 {
		return "", errors.Errorf("no token accounts for %s", mint)
	}
	holder := accounts.Result.Value[0].Address

	body, err = f.rpc.Call(ctx, rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "getAccountInfo",
		Params:  []interface{}{holder, map[string]string{"encoding": "jsonParsed"}},
	})
	if err != nil {
		return "", errors.Wrap(err, "account info")
	}

	var info accountInfoResponse
	if err := json.Unmarshal(body, &info); err != nil {
		return "", errors.Wrap(err, "decode account info")
	}
	owner := info.Result.Value.Data.Parsed.Info.Owner
	if owner == "" {
		return "", errors.Errorf("no parsed owner for %s", mint)
	}
	return owner, nil
}
