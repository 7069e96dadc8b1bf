package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/fatih/color"
)

const baseURL = "http://localhost:3000/api"

// Simplified DTOs for the script
type startIntakeResponse struct {
	Data struct {
		SessionID    string       `json:"session_id"`
		Conversation conversation `json:"conversation"`
	} `json:"data"`
}

type sendAnswerResponse struct {
	Data struct {
		Conversation conversation `json:"conversation"`
	} `json:"data"`
}

type conversation struct {
	Transcript []struct {
		Role string `json:"role"`
		Text string `json:"text"`
	} `json:"transcript"`
	CurrentCategory    string   `json:"current_category"`
	DetectedCategories []string `json:"detected_categories"`
	Emissions          []struct {
		Category string  `json:"category"`
		Tonnes   float64 `json:"tonnes"`
	} `json:"emissions"`
	AnalysisComplete bool `json:"analysis_complete"`
}

func main() {
	head := color.New(color.FgCyan, color.Bold)
	user := color.New(color.FgGreen)
	bot := color.New(color.FgYellow)
	meta := color.New(color.FgMagenta)

	head.Println("=== Intake Conversation Probe ===")

	sessionID, conv, err := startIntake()
	if err != nil {
		log.Fatalf("Failed to start intake: %v", err)
	}
	fmt.Printf("Session: %s\n", sessionID)
	printAssistant(bot, conv)

	answers := []string{
		"We operate five delivery vans and two company cars.",
		"Each van drives roughly 30,000 km per year on diesel.",
		"Our office uses about 40,000 kWh of electricity annually.",
	}

	for _, text := range answers {
		user.Printf("\nUSER: %s\n", text)

		start := time.Now()
		conv, err = sendAnswer(sessionID, text)
		elapsed := time.Since(start)

		if err != nil {
			color.Red("Error: %v", err)
			continue
		}

		printAssistant(bot, conv)
		meta.Printf("  [category=%s detected=%v emissions=%v] (%.2fs)\n",
			conv.CurrentCategory, conv.DetectedCategories, conv.Emissions, elapsed.Seconds())

		if conv.AnalysisComplete {
			head.Println("\nAnalysis complete.")
			break
		}
	}
}

func printAssistant(bot *color.Color, conv conversation) {
	if len(conv.Transcript) == 0 {
		return
	}
	last := conv.Transcript[len(conv.Transcript)-1]
	if last.Role == "assistant" {
		bot.Printf("BOT: %s\n", last.Text)
	}
}

func startIntake() (string, conversation, error) {
	payload := map[string]interface{}{
		"company_profile": map[string]string{
			"country":             "Sweden",
			"industry":            "Logistics",
			"employees":           "11-50",
			"physical_facilities": "One office, one warehouse",
			"sells":               "Last-mile delivery services",
		},
	}

	body, err := postJSON(baseURL+"/intake/v1/profile", payload)
	if err != nil {
		return "", conversation{}, err
	}

	var res startIntakeResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return "", conversation{}, err
	}
	return res.Data.SessionID, res.Data.Conversation, nil
}

func sendAnswer(sessionID, text string) (conversation, error) {
	body, err := postJSON(baseURL+"/chat/v1/"+sessionID+"/message", map[string]string{
		"answer": text,
	})
	if err != nil {
		return conversation{}, err
	}

	var res sendAnswerResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return conversation{}, err
	}
	return res.Data.Conversation, nil
}

func postJSON(url string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	resp, err := http.Post(url, "application/json", bytes.NewBuffer(data))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
