package arbiter

import (
	"errors"
	"fmt"
	"time"

	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/req"

	"github.com/dd0wney/cluso-lineage/pkg/audit"
	"github.com/dd0wney/cluso-lineage/pkg/graph"
)

// Client talks to a running arbiter over a req socket.
type Client struct {
	sock mangos.Socket
}

// Dial connects to the arbiter at addr with the given request timeout.
func Dial(addr string, timeout time.Duration) (*Client, error) {
	sock, err := req.NewSocket()
	if err != nil {
		return nil, err
	}
	if err := sock.SetOption(mangos.OptionRecvDeadline, timeout); err != nil {
		sock.Close()
		return nil, err
	}
	if err := sock.SetOption(mangos.OptionSendDeadline, timeout); err != nil {
		sock.Close()
		return nil, err
	}
	if err := sock.Dial(addr); err != nil {
		sock.Close()
		return nil, err
	}
	return &Client{sock: sock}, nil
}

func (c *Client) roundTrip(request Request) (Response, error) {
	data, err := encodeRequest(request)
	if err != nil {
		return Response{}, err
	}
	if err := c.sock.Send(data); err != nil {
		return Response{}, fmt.Errorf("failed to reach arbiter: %w", err)
	}
	reply, err := c.sock.Recv()
	if err != nil {
		return Response{}, fmt.Errorf("no reply from arbiter: %w", err)
	}
	return decodeResponse(reply)
}

// Ping checks the arbiter is alive.
func (c *Client) Ping() error {
	resp, err := c.roundTrip(Request{Op: OpPing})
	if err != nil {
		return err
	}
	if !resp.OK {
		return errors.New(resp.Error)
	}
	return nil
}

// Claim asks the arbiter to claim a task on the shared graph.
func (c *Client) Claim(taskID string) (audit.Event, error) {
	resp, err := c.roundTrip(Request{Op: OpClaim, TaskID: taskID})
	if err != nil {
		return audit.Event{}, err
	}
	if !resp.OK {
		return audit.Event{}, mapClaimError(taskID, resp)
	}
	if resp.Event == nil {
		return audit.Event{}, errors.New("arbiter accepted claim but returned no event")
	}
	return *resp.Event, nil
}

// Plannable asks the arbiter for the currently plannable task ids.
func (c *Client) Plannable() ([]string, error) {
	resp, err := c.roundTrip(Request{Op: OpPlan})
	if err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, errors.New(resp.Error)
	}
	return resp.Plannable, nil
}

// Close shuts the socket down.
func (c *Client) Close() error {
	return c.sock.Close()
}

// mapClaimError restores the engine's sentinel from the reply's wire code,
// so callers can errors.Is across the IPC boundary. Replies without a code
// (transport faults, persistence failures) surface as plain errors.
func mapClaimError(taskID string, resp Response) error {
	if sentinel := codeSentinel(resp.Code); sentinel != nil {
		return &graph.GraphError{Op: "Claim", NodeID: taskID, Context: "via arbiter", Cause: sentinel}
	}
	return errors.New(resp.Error)
}
