package ethnotary

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"xdao.co/docnotary/model"
	"xdao.co/docnotary/notary"
)

// RevertError is a contract-level rejection.
type RevertError struct {
	Reason string
	Cause  error
}

func (e *RevertError) Error() string {
	if e.Reason == "" {
		return "execution reverted"
	}
	return "execution reverted: " + e.Reason
}

func (e *RevertError) Unwrap() error { return e.Cause }

// revertReason extracts the Error(string) reason a node attached to err.
func revertReason(err error) (string, bool) {
	var de rpc.DataError
	if errors.As(err, &de) {
		if s, ok := de.ErrorData().(string); ok {
			if data, derr := hexutil.Decode(s); derr == nil {
				if reason, uerr := abi.UnpackRevert(data); uerr == nil {
					return reason, true
				}
			}
		}
	}
	msg := err.Error()
	for _, marker := range []string{"execution reverted: ", "revert "} {
		if i := strings.Index(msg, marker); i >= 0 {
			return strings.TrimSpace(msg[i+len(marker):]), true
		}
	}
	if strings.Contains(msg, "execution reverted") || strings.HasSuffix(msg, "revert") {
		return "", true
	}
	return "", false
}

// classifySendError separates rejections answered by the node from failures
// to reach it. A JSON-RPC error object means the node answered.
func classifySendError(err error) error {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		msg := err.Error()
		if reason, ok := revertReason(err); ok && reason != "" {
			msg = reason
		}
		return model.WrapError(model.KindNotarization, notary.MethodNotarize, msg, err)
	}
	var revert *RevertError
	if errors.As(err, &revert) {
		return model.WrapError(model.KindNotarization, notary.MethodNotarize, revert.Error(), err)
	}
	if strings.HasPrefix(err.Error(), "ethnotary: ") {
		return model.WrapError(model.KindNotarization, notary.MethodNotarize, "", err)
	}
	return model.WrapError(model.KindTransport, notary.MethodNotarize, "", err)
}
