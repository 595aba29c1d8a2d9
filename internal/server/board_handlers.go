package server

import (
	"html/template"
	"strconv"

	"bbs/internal/middleware"
	"bbs/internal/models"
	"bbs/internal/service"
	"bbs/internal/views"

	"github.com/gofiber/fiber/v2"
)

// List renders one page of posts for the search criteria.
func (s *Server) List(c *fiber.Ctx) error {
	criteria := parseCriteria(c)
	res, err := s.boardService.List(c.UserContext(), service.ListInput{
		Page:     parsePage(c),
		Criteria: criteria,
	})
	if err != nil {
		return err
	}

	return c.Render(views.ListView, fiber.Map{
		"title":      "List",
		"list":       res.Posts,
		"page":       res.Page.Current,
		"total_page": res.Page.TotalPages,
		"dataCount":  res.Page.TotalCount,
		"size":       res.Page.Size,
		"schType":    criteria.Type,
		"kwd":        criteria.Keyword,
		"window":     res.Window,
		"pager":      res.Page,
		"query":      template.URL(service.NavigationQuery(res.Page.Current, criteria)), //nolint:gosec
		"flash":      popFlash(c),
	})
}

func (s *Server) WriteForm(c *fiber.Ctx) error {
	return c.Render(views.WriteView, fiber.Map{
		"title": "Write",
		"mode":  "write",
	})
}

// WriteSubmit stores a new post and always returns to the first list page.
func (s *Server) WriteSubmit(c *fiber.Ctx) error {
	_, err := s.boardService.Create(c.UserContext(), service.CreatePostInput{
		Name:    c.FormValue("name"),
		Title:   c.FormValue("title"),
		Content: c.FormValue("content"),
		IPAddr:  c.IP(),
	})
	if err != nil {
		recordFailure(c, "write", err)
	}
	return c.Redirect("/bbs/list")
}

// WriteLimited answers a write refused by the rate limiter the same way as any other failed write.
func (s *Server) WriteLimited(c *fiber.Ctx) error {
	recordFailure(c, "write", models.NewRateLimitError("Too many posts, please wait a minute before writing again."))
	return c.Redirect("/bbs/list")
}

// Article counts a view and renders the post. A missing post sends the reader back to the list
// they came from.
func (s *Server) Article(c *fiber.Ctx) error {
	num, err := parseNum(c)
	if err != nil {
		return err
	}
	page := parsePage(c)
	criteria := parseCriteria(c)

	res, err := s.boardService.Article(c.UserContext(), service.ArticleInput{
		ID:       num,
		Page:     page,
		Criteria: criteria,
	})
	if service.IsNotFound(err) {
		return c.Redirect("/bbs/list?" + service.NavigationQuery(page, criteria))
	}
	if err != nil {
		return err
	}
	middleware.ArticleViews.Inc()

	return c.Render(views.ArticleView, fiber.Map{
		"title":   res.Post.Title,
		"dto":     res.Post,
		"content": res.ContentHTML,
		"prevDto": res.Prev,
		"nextDto": res.Next,
		"page":    page,
		"schType": criteria.Type,
		"kwd":     criteria.Keyword,
		"query":   template.URL(res.Query), //nolint:gosec
	})
}

// Delete removes the post and returns to the list page and search it was opened from.
func (s *Server) Delete(c *fiber.Ctx) error {
	num, err := parseNum(c)
	if err != nil {
		return err
	}
	page := parsePage(c)
	criteria := parseCriteria(c)

	if err := s.boardService.Delete(c.UserContext(), num); err != nil {
		recordFailure(c, "delete", err)
	}
	return c.Redirect("/bbs/list?" + service.NavigationQuery(page, criteria))
}

func (s *Server) UpdateForm(c *fiber.Ctx) error {
	num, err := parseNum(c)
	if err != nil {
		return err
	}
	page := parsePage(c)

	post, err := s.boardService.Get(c.UserContext(), num)
	if service.IsNotFound(err) {
		return c.Redirect("/bbs/list?page=" + strconv.Itoa(page))
	}
	if err != nil {
		return err
	}

	return c.Render(views.WriteView, fiber.Map{
		"title": "Edit",
		"mode":  "update",
		"dto":   post,
		"page":  page,
	})
}

// UpdateSubmit saves the edited fields and returns to the list page the edit started from.
func (s *Server) UpdateSubmit(c *fiber.Ctx) error {
	num, err := parseNum(c)
	if err != nil {
		return err
	}
	page := parsePage(c)

	err = s.boardService.Update(c.UserContext(), service.UpdatePostInput{
		ID:      num,
		Name:    c.FormValue("name"),
		Title:   c.FormValue("title"),
		Content: c.FormValue("content"),
	})
	if err != nil {
		recordFailure(c, "update", err)
	}
	return c.Redirect("/bbs/list?page=" + strconv.Itoa(page))
}
