package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
)

// spotEntry mirrors the registry entry shape of GET /api/spots.
type spotEntry struct {
	SpotID string `json:"spot_id"`
	Record *struct {
		Status string `json:"status"`
	} `json:"record,omitempty"`
}

type spotsResponse struct {
	Spots    []spotEntry `json:"spots"`
	Occupied int         `json:"occupied"`
}

type loginResponse struct {
	Token string `json:"token"`
}

var authToken string

func authorizedRequest(method, url string, body *bytes.Buffer) (*http.Response, error) {
	if body == nil {
		body = bytes.NewBuffer(nil)
	}
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	client := &http.Client{Timeout: 10 * time.Second}
	return client.Do(req)
}

func login(apiURL, email, password string) error {
	payload, _ := json.Marshal(map[string]string{"email": email, "password": password})
	resp, err := authorizedRequest(http.MethodPost, apiURL+"/auth/login", bytes.NewBuffer(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("login failed with status %d", resp.StatusCode)
	}

	var lr loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return err
	}
	authToken = lr.Token
	return nil
}

func fetchSpots(apiURL string) (*spotsResponse, error) {
	resp, err := authorizedRequest(http.MethodGet, apiURL+"/spots", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("spots fetch failed with status %d", resp.StatusCode)
	}

	var sr spotsResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, err
	}
	return &sr, nil
}

// randomPlate builds a plausible plate like "AB 123 CD".
func randomPlate() string {
	letters := "ABCDEFGHJKLMNPRSTUVWXYZ"
	pick := func() byte { return letters[rand.Intn(len(letters))] }
	return fmt.Sprintf("%c%c %03d %c%c", pick(), pick(), rand.Intn(1000), pick(), pick())
}

// vehicleFor picks a vehicle class matching the spot: motorcycle spots
// (M-prefixed) always get motorcycles.
func vehicleFor(spotID string) string {
	if len(spotID) > 0 && spotID[0] == 'M' {
		return "motorcycle"
	}
	return []string{"car", "car", "car", "truck"}[rand.Intn(4)]
}

func occupyRandomFreeSpot(apiURL string, spots *spotsResponse) {
	var free []string
	for _, s := range spots.Spots {
		if s.Record == nil {
			free = append(free, s.SpotID)
		}
	}
	if len(free) == 0 {
		return
	}
	spotID := free[rand.Intn(len(free))]
	payload, _ := json.Marshal(map[string]string{
		"vehicle_class": vehicleFor(spotID),
		"plate":         randomPlate(),
	})
	resp, err := authorizedRequest(http.MethodPost, apiURL+"/spots/"+spotID+"/occupy", bytes.NewBuffer(payload))
	if err != nil {
		log.WithError(err).Error("Failed to occupy spot")
		return
	}
	resp.Body.Close()
	log.WithFields(log.Fields{"spot_id": spotID, "status": resp.StatusCode}).Info("Occupied spot")
}

func finishRandomOccupiedSpot(apiURL string, spots *spotsResponse) {
	var occupied []string
	for _, s := range spots.Spots {
		if s.Record != nil && s.Record.Status == "occupied" {
			occupied = append(occupied, s.SpotID)
		}
	}
	if len(occupied) == 0 {
		return
	}
	spotID := occupied[rand.Intn(len(occupied))]

	resp, err := authorizedRequest(http.MethodPost, apiURL+"/spots/"+spotID+"/finish", nil)
	if err != nil {
		log.WithError(err).Error("Failed to begin finish")
		return
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return
	}

	amount := strconv.Itoa((rand.Intn(20) + 1) * 500)
	payload, _ := json.Marshal(map[string]string{"amount": amount})
	resp, err = authorizedRequest(http.MethodPost, apiURL+"/spots/"+spotID+"/charge", bytes.NewBuffer(payload))
	if err != nil {
		log.WithError(err).Error("Failed to confirm charge")
		return
	}
	resp.Body.Close()
	log.WithFields(log.Fields{"spot_id": spotID, "amount": amount, "status": resp.StatusCode}).Info("Finished visit")
}

func main() {
	apiURL := os.Getenv("API_BASE_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080/api"
	}

	interval := 3 * time.Second
	if v := os.Getenv("SIM_TICK_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			interval = time.Duration(n) * time.Second
		}
	}

	email := os.Getenv("SIM_EMAIL")
	password := os.Getenv("SIM_PASSWORD")
	if email == "" || password == "" {
		log.Fatal("SIM_EMAIL and SIM_PASSWORD are required (an operator account)")
	}
	if err := login(apiURL, email, password); err != nil {
		log.WithError(err).Fatal("Login failed. Ensure the API is reachable and the account exists.")
	}

	log.WithFields(log.Fields{
		"api_url":  apiURL,
		"interval": interval,
	}).Info("Starting lot activity simulation")

	for {
		spots, err := fetchSpots(apiURL)
		if err != nil {
			log.WithError(err).Error("Failed to fetch spots")
			time.Sleep(interval)
			continue
		}

		// Bias toward filling the lot until roughly two thirds full.
		if spots.Occupied < 2*len(spots.Spots)/3 && rand.Intn(3) > 0 {
			occupyRandomFreeSpot(apiURL, spots)
		} else {
			finishRandomOccupiedSpot(apiURL, spots)
		}
		time.Sleep(interval)
	}
}
