package merkle_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/lexchat/pkg/merkle"
)

func bucket(role, content string) merkle.Bucket {
	return merkle.Bucket{Type: "message", Role: role, Content: content}
}

var _ = Describe("Node", func() {
	Describe("NewNode", func() {
		Context("when creating the first turn (no parent)", func() {
			It("keeps the given bucket", func() {
				b := bucket("user", "É crime dirigir sem habilitação?")
				node := merkle.NewNode(b, nil)

				Expect(node.Bucket).To(Equal(b))
				Expect(node.ParentHash).To(BeNil())
			})

			It("produces consistent hashes for the same bucket", func() {
				node1 := merkle.NewNode(bucket("user", "same"), nil)
				node2 := merkle.NewNode(bucket("user", "same"), nil)

				Expect(node1.Hash).To(Equal(node2.Hash))
			})

			It("distinguishes role as well as content", func() {
				node1 := merkle.NewNode(bucket("user", "same"), nil)
				node2 := merkle.NewNode(bucket("assistant", "same"), nil)

				Expect(node1.Hash).NotTo(Equal(node2.Hash))
			})
		})

		Context("when creating a later turn", func() {
			var parent *merkle.Node

			BeforeEach(func() {
				parent = merkle.NewNode(bucket("user", "pergunta"), nil)
			})

			It("links the child to the parent via ParentHash", func() {
				child := merkle.NewNode(bucket("assistant", "resposta"), parent)

				Expect(child.ParentHash).NotTo(BeNil())
				Expect(*child.ParentHash).To(Equal(parent.Hash))
			})

			It("does not alias the parent's hash field", func() {
				child := merkle.NewNode(bucket("assistant", "resposta"), parent)
				original := parent.Hash
				parent.Hash = "mutated"

				Expect(*child.ParentHash).To(Equal(original))
			})

			It("produces different hashes for the same bucket under different parents", func() {
				other := merkle.NewNode(bucket("user", "outra pergunta"), nil)
				child1 := merkle.NewNode(bucket("assistant", "sim"), parent)
				child2 := merkle.NewNode(bucket("assistant", "sim"), other)

				Expect(child1.Hash).NotTo(Equal(child2.Hash))
			})
		})
	})

	Describe("Hash computation", func() {
		It("produces a valid SHA-256 hex string (64 characters)", func() {
			node := merkle.NewNode(bucket("user", "test"), nil)

			Expect(node.Hash).To(MatchRegexp("^[a-f0-9]{64}$"))
		})
	})
})
