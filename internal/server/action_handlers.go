package server

import (
	"github.com/gofiber/fiber/v2"
)

type messageRequest struct {
	Raw string `json:"raw"`
}

type voteRequest struct {
	Up bool `json:"up"`
}

type statusRequest struct {
	Status int `json:"status"`
}

// PostMessage ingests a new message into a room.
func (s *Server) PostMessage(c *fiber.Ctx) error {
	roomID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req messageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	post, err := s.ingestion.PostMessage(c.Context(), currentUserID(c), roomID, req.Raw)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// EditPost appends a new revision to a post.
func (s *Server) EditPost(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req messageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	post, err := s.ingestion.EditPost(c.Context(), currentUserID(c), postID, req.Raw)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}

// DeletePost soft-deletes a post.
func (s *Server) DeletePost(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.ingestion.DeletePost(c.Context(), currentUserID(c), postID); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// PinPost pins a post to its room.
func (s *Server) PinPost(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	post, err := s.ingestion.PinPost(c.Context(), currentUserID(c), postID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}

// VotePost casts the actor's single vote on a post.
func (s *Server) VotePost(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req voteRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	score, err := s.ingestion.VotePost(c.Context(), currentUserID(c), postID, req.Up)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"id": postID, "score": score})
}

// FlagPost records a moderation flag on a post.
func (s *Server) FlagPost(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.ingestion.FlagPost(c.Context(), currentUserID(c), postID); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusAccepted)
}

// SetStatus updates the actor's presence within an organisation.
func (s *Server) SetStatus(c *fiber.Ctx) error {
	orgID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req statusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if err := s.ingestion.SetStatus(c.Context(), currentUserID(c), orgID, req.Status); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"status": req.Status})
}

// GetPinnedPosts lists a room's pinned posts by descending hotness.
func (s *Server) GetPinnedPosts(c *fiber.Ctx) error {
	roomID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	posts, err := s.ingestion.PinnedPosts(c.Context(), currentUserID(c), roomID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"posts": posts})
}
