package service

import "campusfeed/internal/models"

// buildCommentTree assembles comments, already sorted by creation, into a
// forest. isRoot selects the top-level nodes. A node whose parent is not in
// comments is dropped together with its replies. Deleted comments survive
// only as placeholders for visible replies.
func buildCommentTree(comments []*models.Comment, isRoot func(*models.Comment) bool) []*models.CommentNode {
	nodes := make(map[uint]*models.CommentNode, len(comments))
	for _, c := range comments {
		nodes[c.ID] = models.NewCommentNode(c)
	}

	roots := []*models.CommentNode{}
	for _, c := range comments {
		node := nodes[c.ID]
		switch {
		case isRoot(c):
			roots = append(roots, node)
		case c.ParentID != nil:
			if parent, ok := nodes[*c.ParentID]; ok {
				parent.Replies = append(parent.Replies, node)
			}
		}
	}

	return pruneDeleted(roots)
}

func pruneDeleted(nodes []*models.CommentNode) []*models.CommentNode {
	kept := nodes[:0]
	for _, n := range nodes {
		n.Replies = pruneDeleted(n.Replies)
		if !n.IsDeleted || len(n.Replies) > 0 {
			kept = append(kept, n)
		}
	}
	return kept
}

func isTopLevel(c *models.Comment) bool {
	return c.ParentID == nil
}
