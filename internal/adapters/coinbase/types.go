package coinbase

// Advanced Trade REST payloads. Prices and sizes travel as strings.

type productsResponse struct {
	Products []productDTO `json:"products"`
}

type productDTO struct {
	ProductID       string `json:"product_id"`
	BaseName        string `json:"base_currency_id"`
	QuoteName       string `json:"quote_currency_id"`
	Volume24h       string `json:"volume_24h"`
	Status          string `json:"status"`
	TradingDisabled bool   `json:"trading_disabled"`
}

type tickerResponse struct {
	Trades []struct {
		Price string `json:"price"`
	} `json:"trades"`
	BestBid string `json:"best_bid"`
	BestAsk string `json:"best_ask"`
}

type accountsResponse struct {
	Accounts []struct {
		Currency         string `json:"currency"`
		AvailableBalance struct {
			Value string `json:"value"`
		} `json:"available_balance"`
	} `json:"accounts"`
	HasNext bool   `json:"has_next"`
	Cursor  string `json:"cursor"`
}

type createOrderRequest struct {
	ClientOrderID      string             `json:"client_order_id"`
	ProductID          string             `json:"product_id"`
	Side               string             `json:"side"`
	OrderConfiguration orderConfiguration `json:"order_configuration"`
}

type orderConfiguration struct {
	LimitLimitGTC limitGTC `json:"limit_limit_gtc"`
}

type limitGTC struct {
	BaseSize   string `json:"base_size"`
	LimitPrice string `json:"limit_price"`
	PostOnly   bool   `json:"post_only"`
}

type createOrderResponse struct {
	Success         bool `json:"success"`
	SuccessResponse struct {
		OrderID string `json:"order_id"`
	} `json:"success_response"`
	ErrorResponse struct {
		Error        string `json:"error"`
		Message      string `json:"message"`
		ErrorDetails string `json:"error_details"`
	} `json:"error_response"`
}

type cancelOrdersResponse struct {
	Results []struct {
		Success bool   `json:"success"`
		OrderID string `json:"order_id"`
	} `json:"results"`
}

type listOrdersResponse struct {
	Orders  []orderDTO `json:"orders"`
	HasNext bool       `json:"has_next"`
	Cursor  string     `json:"cursor"`
}

type orderDTO struct {
	OrderID            string             `json:"order_id"`
	ProductID          string             `json:"product_id"`
	Side               string             `json:"side"`
	Status             string             `json:"status"`
	CreatedTime        string             `json:"created_time"`
	OrderConfiguration orderConfiguration `json:"order_configuration"`
}

type fillsResponse struct {
	Fills  []fillDTO `json:"fills"`
	Cursor string    `json:"cursor"`
}

type fillDTO struct {
	TradeID    string `json:"trade_id"`
	OrderID    string `json:"order_id"`
	ProductID  string `json:"product_id"`
	Side       string `json:"side"`
	Price      string `json:"price"`
	Size       string `json:"size"`
	Commission string `json:"commission"`
	TradeTime  string `json:"trade_time"`
}

type candlesResponse struct {
	Candles []candleDTO `json:"candles"`
}

type candleDTO struct {
	Start  string `json:"start"`
	Low    string `json:"low"`
	High   string `json:"high"`
	Open   string `json:"open"`
	Close  string `json:"close"`
	Volume string `json:"volume"`
}
