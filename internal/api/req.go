package api

import (
	"github.com/zxhio/usbboot/internal/boot"
	"github.com/zxhio/usbboot/pkg/utils"
)

// Client queries a running daemon.
type Client struct {
	Addr string
}

func NewClient(addr string) *Client {
	if addr == "" {
		addr = DefaultAPIAddr
	}
	return &Client{Addr: addr}
}

func (c *Client) QueryTransactions(page QueryPage) (*QueryTransactionsResp, error) {
	return utils.NewHTTPRequestMessage[QueryTransactionsResp](
		APIPathQueryTransactions,
		GetBodyData,
		utils.WithReqAddr(c.Addr),
		utils.WithReqQuery(page.ToQuery()),
	)
}

// QueryAllTransactions walks every page.
func (c *Client) QueryAllTransactions() ([]boot.TransactionInfo, error) {
	var infos []boot.TransactionInfo
	page := QueryPage{Page: 1, Limit: 100}
	for {
		resp, err := c.QueryTransactions(page)
		if err != nil {
			return nil, err
		}
		infos = append(infos, resp.Data...)
		if len(resp.Data) == 0 || len(infos) >= resp.Total {
			return infos, nil
		}
		page.Page++
	}
}

func (c *Client) QueryTransaction(port string) (*boot.TransactionInfo, error) {
	return utils.NewHTTPRequestMessage[boot.TransactionInfo](
		InstantiateAPIURL(APIPathQueryTransaction, map[string]string{":port": port}),
		GetBodyData,
		utils.WithReqAddr(c.Addr),
	)
}

func (c *Client) QueryDevices(capableOnly bool) (*QueryDevicesResp, error) {
	opts := []utils.ReqOpt{utils.WithReqAddr(c.Addr)}
	if capableOnly {
		opts = append(opts, utils.WithReqQueryKV("capable", true))
	}
	return utils.NewHTTPRequestMessage[QueryDevicesResp](APIPathQueryDevices, GetBodyData, opts...)
}
