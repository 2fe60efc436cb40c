package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"trpc.group/trpc-go/trpc-a2a-go/protocol"

	"github.com/tuannvm/jira-tracker/internal/common"
	"github.com/tuannvm/jira-tracker/internal/config"
	"github.com/tuannvm/jira-tracker/internal/models"
)

var (
	sendAgentURL string
	sendAction   string
	sendProduct  string
	sendRelease  string
	sendStatus   string
	sendComment  string
)

var sendCmd = &cobra.Command{
	Use:   "send [URL...]",
	Short: "Send a tracker request to a running tracker agent over A2A",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.NewConfig()
		target := sendAgentURL
		if target == "" {
			target = cfg.AgentURL
		}
		a2aClient, err := common.SetupA2AClient(cfg, target)
		if err != nil {
			return err
		}

		req := models.TrackerRequest{
			Action:  strings.ToLower(sendAction),
			URLs:    args,
			Product: sendProduct,
			Release: sendRelease,
			Status:  models.IssueStatus(strings.ToUpper(sendStatus)),
		}
		if sendComment != "" {
			req.Comment = &models.Comment{Body: sendComment}
		}
		dataPart := protocol.DataPart{
			Type: "data",
			Data: req,
			Metadata: map[string]interface{}{
				"content-type": "application/json",
			},
		}
		msg, err := common.SendTask(cmd.Context(), a2aClient, protocol.SendTaskParams{
			Message: protocol.Message{Parts: []protocol.Part{&dataPart}},
		})
		if err != nil {
			return err
		}
		for _, part := range msg.Parts {
			switch p := part.(type) {
			case *protocol.TextPart:
				fmt.Println(p.Text)
			case *protocol.DataPart:
				if err := printJSON(p.Data); err != nil {
					return err
				}
			case protocol.DataPart:
				if err := printJSON(p.Data); err != nil {
					return err
				}
			}
		}
		return nil
	},
}

func init() {
	sendCmd.Flags().StringVar(&sendAgentURL, "agent", "", "Tracker agent URL (default AGENT_URL)")
	sendCmd.Flags().StringVarP(&sendAction, "action", "a", "get", "Action (get, search, comment, update)")
	sendCmd.Flags().StringVar(&sendProduct, "product", "", "Project key for search")
	sendCmd.Flags().StringVar(&sendRelease, "release", "", "Fix version for search")
	sendCmd.Flags().StringVar(&sendStatus, "status", "", "Status for search or update")
	sendCmd.Flags().StringVar(&sendComment, "comment", "", "Comment body")
	rootCmd.AddCommand(sendCmd)
}
