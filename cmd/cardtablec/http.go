package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/net/websocket"
)

func get(url string, sid string, result interface{}) error {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if sid != "" {
		req.AddCookie(&http.Cookie{
			Name:  "sid",
			Value: sid,
		})
	}

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	bs, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}

	if res.StatusCode >= 300 {
		return fmt.Errorf("http request failed: %v: %v", res.Status, string(bs))
	}

	return json.Unmarshal(bs, result)
}

func post(url string, sid string, body interface{}, result interface{}) error {
	bs, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(bs))
	if err != nil {
		return err
	}
	if sid != "" {
		req.AddCookie(&http.Cookie{
			Name:  "sid",
			Value: sid,
		})
	}

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	bs, err = io.ReadAll(res.Body)
	if err != nil {
		return err
	}

	if res.StatusCode >= 300 {
		return fmt.Errorf("http request failed: %v: %v", res.Status, string(bs))
	}

	if result != nil {
		return json.Unmarshal(bs, result)
	}

	return nil
}

// watch attaches to the broadcast channel and prints every event as it
// arrives, until interrupted.
func watch(url string, sid string) error {
	wsURL := strings.Replace(url, "http", "ws", 1) + "/ws"

	config, err := websocket.NewConfig(wsURL, url)
	if err != nil {
		return err
	}
	if sid != "" {
		config.Header.Set("Cookie", "sid="+sid)
	}

	conn, err := websocket.DialConfig(config)
	if err != nil {
		return err
	}
	defer conn.Close()

	dec := json.NewDecoder(conn)
	for {
		event := map[string]interface{}{}
		if err := dec.Decode(&event); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		bs, err := json.Marshal(event)
		if err != nil {
			return err
		}
		fmt.Println(string(bs))
	}
}
