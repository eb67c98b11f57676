package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// Small REST client for poking a running venue from the command line.

func main() {
	// 1. CLI Parameter Parsing
	serverAddr := flag.String("server", "http://127.0.0.1:5000", "Base URL of the venue")
	action := flag.String("action", "place", "Action to perform: ['place', 'book', 'trades', 'stats']")

	// Order Parameters
	symbol := flag.String("symbol", "BTC-USDT", "Symbol")
	sideStr := flag.String("side", "buy", "Order side: 'buy' or 'sell'")
	typeStr := flag.String("type", "limit", "Order type: 'limit', 'market', 'ioc' or 'fok'")
	price := flag.String("price", "", "Limit price (decimal string)")
	qtyStr := flag.String("qty", "10", "Quantity or comma-separated list (e.g. 10,20,50)")
	user := flag.String("user", "", "Optional user id")

	// Query Parameters
	depth := flag.Int("depth", 10, "Book depth to fetch")
	limit := flag.Int("limit", 50, "Number of recent trades to fetch")

	flag.Parse()

	var err error
	switch *action {
	case "place":
		for _, qty := range strings.Split(*qtyStr, ",") {
			err = placeOrder(*serverAddr, *symbol, *typeStr, *sideStr, strings.TrimSpace(qty), *price, *user)
			if err != nil {
				break
			}
		}
	case "book":
		err = get(fmt.Sprintf("%s/orderbook/%s?depth=%d", *serverAddr, *symbol, *depth))
	case "trades":
		err = get(fmt.Sprintf("%s/trades/%s?limit=%d", *serverAddr, *symbol, *limit))
	case "stats":
		err = get(*serverAddr + "/stats")
	default:
		fmt.Printf("Error: unknown action %q.\n", *action)
		flag.Usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
}

func placeOrder(server, symbol, orderType, side, qty, price, user string) error {
	body := map[string]any{
		"symbol":     symbol,
		"order_type": orderType,
		"side":       side,
		"quantity":   qty,
	}
	if price != "" {
		body["price"] = price
	}
	if user != "" {
		body["user_id"] = user
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	resp, err := http.Post(server+"/order", "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return print(resp)
}

func get(url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return print(resp)
}

func print(resp *http.Response) error {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		fmt.Println(string(raw))
		return nil
	}
	fmt.Printf("%s %s\n", resp.Status, pretty.String())
	return nil
}
